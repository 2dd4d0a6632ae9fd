package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/bitfantasy/nimo-mes/internal/wms/testutil"
)

func TestDisposalPinnedLotProcessAndComplete(t *testing.T) {
	env := setupDocTest(t)
	ctx := context.Background()

	wh := testutil.SeedWarehouse(t, env.db, "WH-Q", entity.WarehouseTypeQuarantine)
	product := testutil.SeedProduct(t, env.db, "P-001")
	lot := testutil.SeedLot(t, env.db, wh, product.ID, "LOT-0001", entity.LotQualityFailed, 12, time.Now())

	dsp, err := env.dsp.Create(ctx, testutil.TenantID, CreateDisposalRequest{
		WarehouseID: wh.ID,
		Reason:      "水损不可修复",
		Items: []CreateDisposalItem{
			{ProductID: product.ID, Quantity: 12, PinnedLotID: &lot.ID},
		},
	}, "u-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := env.dsp.Approve(ctx, testutil.TenantID, dsp.ID, "u-2"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	dsp, err = env.dsp.Process(ctx, testutil.TenantID, dsp.ID, "u-3")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if dsp.Status != entity.DisposalStatusProcessed {
		t.Errorf("Expected PROCESSED, got %s", dsp.Status)
	}
	if len(dsp.Items[0].Allocations) != 1 || dsp.Items[0].Allocations[0].LotID != lot.ID {
		t.Fatalf("Expected pinned lot allocation, got %+v", dsp.Items[0].Allocations)
	}

	// 批次清零并停用
	var reloaded entity.Lot
	env.db.First(&reloaded, "id = ?", lot.ID)
	if reloaded.CurrentQty != 0 || reloaded.Active {
		t.Errorf("Expected drained inactive lot, got qty=%v active=%v", reloaded.CurrentQty, reloaded.Active)
	}
	var record entity.StockTransaction
	if err := env.db.Where("reference_id = ?", dsp.ID).First(&record).Error; err != nil {
		t.Fatalf("Expected a transaction record: %v", err)
	}
	if record.Type != entity.TxTypeDisposalOut || record.Quantity != -12 {
		t.Errorf("Unexpected record: type=%s qty=%v", record.Type, record.Quantity)
	}

	dsp, err = env.dsp.Complete(ctx, testutil.TenantID, dsp.ID, CompleteDisposalRequest{
		Method:   "INCINERATION",
		Location: "厂外处置中心",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if dsp.Method != "INCINERATION" || dsp.Location != "厂外处置中心" {
		t.Errorf("Expected disposal method recorded, got method=%s location=%s", dsp.Method, dsp.Location)
	}
}

func TestDisposalCompleteRequiresMethod(t *testing.T) {
	env := setupDocTest(t)
	ctx := context.Background()

	wh := testutil.SeedWarehouse(t, env.db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, env.db, "P-001")
	testutil.SeedLot(t, env.db, wh, product.ID, "LOT-0001", entity.LotQualityPassed, 5, time.Now())

	dsp, _ := env.dsp.Create(ctx, testutil.TenantID, CreateDisposalRequest{
		WarehouseID: wh.ID,
		Reason:      "过期",
		Items:       []CreateDisposalItem{{ProductID: product.ID, Quantity: 5}},
	}, "u-1")
	env.dsp.Approve(ctx, testutil.TenantID, dsp.ID, "u-2")
	if _, err := env.dsp.Process(ctx, testutil.TenantID, dsp.ID, "u-3"); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if _, err := env.dsp.Complete(ctx, testutil.TenantID, dsp.ID, CompleteDisposalRequest{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation without disposal method, got %v", err)
	}
}
