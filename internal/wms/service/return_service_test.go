package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/bitfantasy/nimo-mes/internal/wms/testutil"
)

func TestReturnUnusedReceiveAddsInventory(t *testing.T) {
	env := setupDocTest(t)
	ctx := context.Background()

	wh := testutil.SeedWarehouse(t, env.db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, env.db, "P-001")

	ret, err := env.ret.Create(ctx, testutil.TenantID, CreateReturnRequest{
		WarehouseID: wh.ID,
		ReturnType:  entity.ReturnTypeUnused,
		Items:       []CreateReturnItem{{ProductID: product.ID, Quantity: 25}},
	}, "u-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(ret.DocNo, "RET-") {
		t.Errorf("Expected RET- prefixed doc number, got %s", ret.DocNo)
	}

	if _, err := env.ret.Approve(ctx, testutil.TenantID, ret.ID, "u-2"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	ret, err = env.ret.Receive(ctx, testutil.TenantID, ret.ID, "u-3")
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if ret.Status != entity.ReturnStatusReceived {
		t.Errorf("Expected RECEIVED, got %s", ret.Status)
	}
	if ret.Items[0].InspectionStatus != entity.InspectionNotRequired {
		t.Errorf("Expected NOT_REQUIRED, got %s", ret.Items[0].InspectionStatus)
	}

	// 无批次归属的退料余额
	inv := getInventory(t, env.db, wh.ID, product.ID, nil)
	if inv.AvailableQty != 25 {
		t.Errorf("Expected available 25, got %v", inv.AvailableQty)
	}
	var record entity.StockTransaction
	if err := env.db.Where("reference_id = ?", ret.ID).First(&record).Error; err != nil {
		t.Fatalf("Expected a transaction record: %v", err)
	}
	if record.Type != entity.TxTypeReturnIn || record.Quantity != 25 {
		t.Errorf("Unexpected record: type=%s qty=%v", record.Type, record.Quantity)
	}

	if _, err := env.ret.Complete(ctx, testutil.TenantID, ret.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
}

func TestReturnDefectiveHeldUntilInspection(t *testing.T) {
	env := setupDocTest(t)
	ctx := context.Background()

	wh := testutil.SeedWarehouse(t, env.db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, env.db, "P-001")

	ret, err := env.ret.Create(ctx, testutil.TenantID, CreateReturnRequest{
		WarehouseID: wh.ID,
		ReturnType:  entity.ReturnTypeDefective,
		Items:       []CreateReturnItem{{ProductID: product.ID, Quantity: 10}},
	}, "u-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := env.ret.Approve(ctx, testutil.TenantID, ret.ID, "u-2"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	ret, err = env.ret.Receive(ctx, testutil.TenantID, ret.ID, "u-3")
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if ret.Status != entity.ReturnStatusInspecting {
		t.Errorf("Expected INSPECTING, got %s", ret.Status)
	}
	if ret.Items[0].InspectionStatus != entity.InspectionPending {
		t.Errorf("Expected PENDING inspection, got %s", ret.Items[0].InspectionStatus)
	}

	// 检验结论出来之前不落账
	var count int64
	env.db.Model(&entity.StockTransaction{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no transaction records before inspection, got %d", count)
	}

	// 待检行项阻塞完成
	if _, err := env.ret.Complete(ctx, testutil.TenantID, ret.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("Expected ErrInvalidStateTransition on complete with pending inspection, got %v", err)
	}
}

func TestReturnInspectionPassMintsQualifiedLot(t *testing.T) {
	env := setupDocTest(t)
	ctx := context.Background()

	wh := testutil.SeedWarehouse(t, env.db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, env.db, "P-001")

	ret, _ := env.ret.Create(ctx, testutil.TenantID, CreateReturnRequest{
		WarehouseID: wh.ID,
		ReturnType:  entity.ReturnTypeDefective,
		Items:       []CreateReturnItem{{ProductID: product.ID, Quantity: 8}},
	}, "u-1")
	env.ret.Approve(ctx, testutil.TenantID, ret.ID, "u-2")
	ret, err := env.ret.Receive(ctx, testutil.TenantID, ret.ID, "u-3")
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}

	item, err := env.quality.ResolveReturnItem(ctx, testutil.TenantID, ret.Items[0].ID, InspectionResultPass, "u-qc")
	if err != nil {
		t.Fatalf("ResolveReturnItem failed: %v", err)
	}
	if item.InspectionStatus != entity.InspectionPassed {
		t.Errorf("Expected PASSED, got %s", item.InspectionStatus)
	}
	if item.ResultLotID == nil {
		t.Fatal("Expected a minted result lot")
	}

	var lot entity.Lot
	if err := env.db.First(&lot, "id = ?", *item.ResultLotID).Error; err != nil {
		t.Fatalf("Minted lot not found: %v", err)
	}
	if lot.QualityStatus != entity.LotQualityPassed || lot.WarehouseID != wh.ID || lot.CurrentQty != 8 {
		t.Errorf("Unexpected minted lot: %+v", lot)
	}

	inv := getInventory(t, env.db, wh.ID, product.ID, &lot.ID)
	if inv.AvailableQty != 8 {
		t.Errorf("Expected restored inventory 8, got %v", inv.AvailableQty)
	}

	// 结论只允许记录一次
	if _, err := env.quality.ResolveReturnItem(ctx, testutil.TenantID, item.ID, InspectionResultPass, "u-qc"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("Expected ErrInvalidStateTransition on double resolve, got %v", err)
	}

	if _, err := env.ret.Complete(ctx, testutil.TenantID, ret.ID); err != nil {
		t.Fatalf("Complete failed after inspection: %v", err)
	}
}

func TestReturnInspectionFailRoutesToQuarantine(t *testing.T) {
	env := setupDocTest(t)
	ctx := context.Background()

	wh := testutil.SeedWarehouse(t, env.db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, env.db, "P-001")

	ret, _ := env.ret.Create(ctx, testutil.TenantID, CreateReturnRequest{
		WarehouseID: wh.ID,
		ReturnType:  entity.ReturnTypeDefective,
		Items:       []CreateReturnItem{{ProductID: product.ID, Quantity: 6}},
	}, "u-1")
	env.ret.Approve(ctx, testutil.TenantID, ret.ID, "u-2")
	ret, err := env.ret.Receive(ctx, testutil.TenantID, ret.ID, "u-3")
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}

	// 未配置隔离仓时拒绝记录不合格结论
	if _, err := env.quality.ResolveReturnItem(ctx, testutil.TenantID, ret.Items[0].ID, InspectionResultFail, "u-qc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound without quarantine warehouse, got %v", err)
	}

	qwh := testutil.SeedWarehouse(t, env.db, "WH-Q", entity.WarehouseTypeQuarantine)
	item, err := env.quality.ResolveReturnItem(ctx, testutil.TenantID, ret.Items[0].ID, InspectionResultFail, "u-qc")
	if err != nil {
		t.Fatalf("ResolveReturnItem failed: %v", err)
	}
	if item.InspectionStatus != entity.InspectionFailed {
		t.Errorf("Expected FAILED, got %s", item.InspectionStatus)
	}

	var lot entity.Lot
	if err := env.db.First(&lot, "id = ?", *item.ResultLotID).Error; err != nil {
		t.Fatalf("Quarantine lot not found: %v", err)
	}
	if lot.WarehouseID != qwh.ID || lot.QualityStatus != entity.LotQualityFailed {
		t.Errorf("Expected failed lot in quarantine warehouse, got %+v", lot)
	}

	// 原仓不产生库存
	var count int64
	env.db.Model(&entity.Inventory{}).Where("warehouse_id = ?", wh.ID).Count(&count)
	if count != 0 {
		t.Errorf("Expected no inventory in origin warehouse, got %d rows", count)
	}
}
