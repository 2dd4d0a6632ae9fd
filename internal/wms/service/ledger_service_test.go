package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/bitfantasy/nimo-mes/internal/wms/testutil"
	"gorm.io/gorm"
)

func setupLedgerTest(t *testing.T) (*gorm.DB, *LedgerService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return db, NewLedgerService(db, NewSequenceService(nil))
}

func applyOne(t *testing.T, ledger *LedgerService, in ApplyInput) *entity.StockTransaction {
	t.Helper()
	var record *entity.StockTransaction
	err := ledger.RunInTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		record, err = ledger.Apply(context.Background(), tx, in)
		return err
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	return record
}

func getInventory(t *testing.T, db *gorm.DB, warehouseID, productID string, lotID *string) *entity.Inventory {
	t.Helper()
	query := db.Where("tenant_id = ? AND warehouse_id = ? AND product_id = ?", testutil.TenantID, warehouseID, productID)
	if lotID != nil {
		query = query.Where("lot_id = ?", *lotID)
	} else {
		query = query.Where("lot_id IS NULL")
	}
	var inv entity.Inventory
	if err := query.First(&inv).Error; err != nil {
		t.Fatalf("inventory not found: %v", err)
	}
	return &inv
}

func TestApplyOutboundDeductsAndDeactivatesLot(t *testing.T) {
	db, ledger := setupLedgerTest(t)

	wh := testutil.SeedWarehouse(t, db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, db, "P-001")
	lot := testutil.SeedLot(t, db, wh, product.ID, "LOT-0001", entity.LotQualityPassed, 30, time.Now())

	record := applyOne(t, ledger, ApplyInput{
		TenantID:      testutil.TenantID,
		WarehouseID:   wh.ID,
		ProductID:     product.ID,
		Type:          entity.TxTypeIssueOut,
		Quantity:      30,
		LotID:         lot.ID,
		ReferenceType: entity.DocKindMaterialRequest,
		ReferenceID:   "mr-1",
		ActorID:       "u-1",
	})

	if record.Quantity != -30 {
		t.Errorf("Expected signed quantity -30, got %v", record.Quantity)
	}
	if !strings.HasPrefix(record.TxNo, "TX-") {
		t.Errorf("Expected TX- prefixed number, got %s", record.TxNo)
	}

	inv := getInventory(t, db, wh.ID, product.ID, &lot.ID)
	if inv.AvailableQty != 0 {
		t.Errorf("Expected available 0, got %v", inv.AvailableQty)
	}

	var reloaded entity.Lot
	db.First(&reloaded, "id = ?", lot.ID)
	if reloaded.CurrentQty != 0 || reloaded.Active {
		t.Errorf("Expected drained lot to be deactivated, got qty=%v active=%v", reloaded.CurrentQty, reloaded.Active)
	}
}

func TestApplyOutboundInsufficientFailsWithoutSideEffects(t *testing.T) {
	db, ledger := setupLedgerTest(t)

	wh := testutil.SeedWarehouse(t, db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, db, "P-001")
	lot := testutil.SeedLot(t, db, wh, product.ID, "LOT-0001", entity.LotQualityPassed, 10, time.Now())

	err := ledger.RunInTx(context.Background(), func(tx *gorm.DB) error {
		_, err := ledger.Apply(context.Background(), tx, ApplyInput{
			TenantID:    testutil.TenantID,
			WarehouseID: wh.ID,
			ProductID:   product.ID,
			Type:        entity.TxTypeIssueOut,
			Quantity:    11,
			LotID:       lot.ID,
			ActorID:     "u-1",
		})
		return err
	})
	if !errors.Is(err, ErrInsufficientInventory) {
		t.Fatalf("Expected ErrInsufficientInventory, got %v", err)
	}

	inv := getInventory(t, db, wh.ID, product.ID, &lot.ID)
	if inv.AvailableQty != 10 {
		t.Errorf("Expected untouched balance 10, got %v", inv.AvailableQty)
	}
	var count int64
	db.Model(&entity.StockTransaction{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no transaction records, got %d", count)
	}
}

func TestApplyMintingCreatesFreshLot(t *testing.T) {
	db, ledger := setupLedgerTest(t)

	wh := testutil.SeedWarehouse(t, db, "WH-Q", entity.WarehouseTypeQuarantine)
	product := testutil.SeedProduct(t, db, "P-001")

	record := applyOne(t, ledger, ApplyInput{
		TenantID:          testutil.TenantID,
		WarehouseID:       wh.ID,
		ProductID:         product.ID,
		Type:              entity.TxTypeQuarantineIn,
		Quantity:          5,
		MintQualityStatus: entity.LotQualityFailed,
		ReferenceType:     entity.DocKindReturn,
		ReferenceID:       "ret-1",
		ActorID:           "u-1",
	})

	if record.LotID == nil {
		t.Fatal("Expected minted lot on record")
	}
	var lot entity.Lot
	if err := db.First(&lot, "id = ?", *record.LotID).Error; err != nil {
		t.Fatalf("minted lot not found: %v", err)
	}
	if lot.QualityStatus != entity.LotQualityFailed || lot.CurrentQty != 5 || !lot.Active {
		t.Errorf("Unexpected minted lot: %+v", lot)
	}
	if !strings.HasPrefix(lot.LotNo, "LOT-") {
		t.Errorf("Expected LOT- prefixed number, got %s", lot.LotNo)
	}

	inv := getInventory(t, db, wh.ID, product.ID, record.LotID)
	if inv.AvailableQty != 5 {
		t.Errorf("Expected available 5, got %v", inv.AvailableQty)
	}
}

func TestReverseRestoresBalancesAndLot(t *testing.T) {
	db, ledger := setupLedgerTest(t)
	ctx := context.Background()

	wh := testutil.SeedWarehouse(t, db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, db, "P-001")
	lot := testutil.SeedLot(t, db, wh, product.ID, "LOT-0001", entity.LotQualityPassed, 30, time.Now())

	original := applyOne(t, ledger, ApplyInput{
		TenantID:    testutil.TenantID,
		WarehouseID: wh.ID,
		ProductID:   product.ID,
		Type:        entity.TxTypeShippingOut,
		Quantity:    30,
		LotID:       lot.ID,
		ActorID:     "u-1",
	})

	var reversal *entity.StockTransaction
	err := ledger.RunInTx(ctx, func(tx *gorm.DB) error {
		var err error
		reversal, err = ledger.Reverse(ctx, tx, original.ID, "u-2", "cancelled")
		return err
	})
	if err != nil {
		t.Fatalf("Reverse failed: %v", err)
	}

	if reversal.Quantity != 30 {
		t.Errorf("Expected reversal quantity +30, got %v", reversal.Quantity)
	}
	if reversal.ReversalOfID == nil || *reversal.ReversalOfID != original.ID {
		t.Errorf("Expected reversal to reference original record")
	}

	inv := getInventory(t, db, wh.ID, product.ID, &lot.ID)
	if inv.AvailableQty != 30 {
		t.Errorf("Expected restored balance 30, got %v", inv.AvailableQty)
	}

	var reloaded entity.Lot
	db.First(&reloaded, "id = ?", lot.ID)
	if reloaded.CurrentQty != 30 || !reloaded.Active {
		t.Errorf("Expected reactivated lot with qty 30, got qty=%v active=%v", reloaded.CurrentQty, reloaded.Active)
	}

	// 原始流水保持不变，余额等于带符号流水之和
	var sum float64
	db.Model(&entity.StockTransaction{}).
		Where("warehouse_id = ? AND product_id = ?", wh.ID, product.ID).
		Select("COALESCE(SUM(quantity), 0)").Scan(&sum)
	if sum != 0 {
		t.Errorf("Expected transaction sum 0 after reversal, got %v", sum)
	}

	// 冲销流水不能再次冲销
	err = ledger.RunInTx(ctx, func(tx *gorm.DB) error {
		_, err := ledger.Reverse(ctx, tx, reversal.ID, "u-2", "again")
		return err
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation when reversing a reversal, got %v", err)
	}
}

func TestApplyRejectsNonPositiveQuantity(t *testing.T) {
	db, ledger := setupLedgerTest(t)

	wh := testutil.SeedWarehouse(t, db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, db, "P-001")

	err := ledger.RunInTx(context.Background(), func(tx *gorm.DB) error {
		_, err := ledger.Apply(context.Background(), tx, ApplyInput{
			TenantID:    testutil.TenantID,
			WarehouseID: wh.ID,
			ProductID:   product.ID,
			Type:        entity.TxTypeReturnIn,
			Quantity:    -5,
			ActorID:     "u-1",
		})
		return err
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation, got %v", err)
	}
}

func TestApplyConcurrentOutboundNeverOverdraws(t *testing.T) {
	db, ledger := setupLedgerTest(t)
	ctx := context.Background()

	wh := testutil.SeedWarehouse(t, db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, db, "P-001")
	lot := testutil.SeedLot(t, db, wh, product.ID, "LOT-0001", entity.LotQualityPassed, 100, time.Now())

	// 两个并发出库各要 60，总量 100：行锁串行化后只允许一个成功
	outcomes := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- ledger.RunInTx(ctx, func(tx *gorm.DB) error {
				_, err := ledger.Apply(ctx, tx, ApplyInput{
					TenantID:    testutil.TenantID,
					WarehouseID: wh.ID,
					ProductID:   product.ID,
					Type:        entity.TxTypeShippingOut,
					Quantity:    60,
					LotID:       lot.ID,
					ActorID:     "u-1",
				})
				return err
			})
		}()
	}
	wg.Wait()
	close(outcomes)

	var failures []error
	for err := range outcomes {
		if err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) != 1 {
		t.Fatalf("Expected exactly one of two concurrent issues to fail, got %d failures: %v", len(failures), failures)
	}
	if !errors.Is(failures[0], ErrInsufficientInventory) && !errors.Is(failures[0], ErrConcurrentModification) {
		t.Fatalf("Unexpected failure kind: %v", failures[0])
	}

	inv := getInventory(t, db, wh.ID, product.ID, &lot.ID)
	if inv.AvailableQty != 40 {
		t.Errorf("Expected available 40 after one successful issue, got %v", inv.AvailableQty)
	}
	var sum float64
	db.Model(&entity.StockTransaction{}).
		Where("warehouse_id = ? AND product_id = ?", wh.ID, product.ID).
		Select("COALESCE(SUM(quantity), 0)").Scan(&sum)
	if sum != -60 {
		t.Errorf("Expected ledger sum -60, got %v", sum)
	}
}
