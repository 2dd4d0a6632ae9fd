package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/bitfantasy/nimo-mes/internal/wms/testutil"
	"gorm.io/gorm"
)

func setupReservationTest(t *testing.T) (*gorm.DB, *ReservationService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ledger := NewLedgerService(db, NewSequenceService(nil))
	return db, NewReservationService(db, ledger)
}

func TestReserveMovesQuantityBetweenPools(t *testing.T) {
	db, svc := setupReservationTest(t)
	ctx := context.Background()

	wh := testutil.SeedWarehouse(t, db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, db, "P-001")
	lot := testutil.SeedLot(t, db, wh, product.ID, "LOT-0001", entity.LotQualityPassed, 100, time.Now())

	if err := svc.Reserve(ctx, testutil.TenantID, wh.ID, product.ID, &lot.ID, 40); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	inv := getInventory(t, db, wh.ID, product.ID, &lot.ID)
	if inv.AvailableQty != 60 || inv.ReservedQty != 40 {
		t.Errorf("Expected 60/40 split, got %v/%v", inv.AvailableQty, inv.ReservedQty)
	}

	// 预留不产生流水
	var count int64
	db.Model(&entity.StockTransaction{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no transaction records for reservation, got %d", count)
	}
}

func TestReserveFailsWhenAvailableTooLow(t *testing.T) {
	db, svc := setupReservationTest(t)
	ctx := context.Background()

	wh := testutil.SeedWarehouse(t, db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, db, "P-001")
	lot := testutil.SeedLot(t, db, wh, product.ID, "LOT-0001", entity.LotQualityPassed, 10, time.Now())

	err := svc.Reserve(ctx, testutil.TenantID, wh.ID, product.ID, &lot.ID, 11)
	if !errors.Is(err, ErrInsufficientInventory) {
		t.Fatalf("Expected ErrInsufficientInventory, got %v", err)
	}

	inv := getInventory(t, db, wh.ID, product.ID, &lot.ID)
	if inv.AvailableQty != 10 || inv.ReservedQty != 0 {
		t.Errorf("Expected untouched balances, got %v/%v", inv.AvailableQty, inv.ReservedQty)
	}
}

func TestReleaseIsCappedAtReservedQuantity(t *testing.T) {
	db, svc := setupReservationTest(t)
	ctx := context.Background()

	wh := testutil.SeedWarehouse(t, db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, db, "P-001")
	lot := testutil.SeedLot(t, db, wh, product.ID, "LOT-0001", entity.LotQualityPassed, 100, time.Now())

	if err := svc.Reserve(ctx, testutil.TenantID, wh.ID, product.ID, &lot.ID, 30); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	// 释放量超出预留量时只释放已有预留
	if err := svc.Release(ctx, testutil.TenantID, wh.ID, product.ID, &lot.ID, 50); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	inv := getInventory(t, db, wh.ID, product.ID, &lot.ID)
	if inv.AvailableQty != 100 || inv.ReservedQty != 0 {
		t.Errorf("Expected full release back to 100/0, got %v/%v", inv.AvailableQty, inv.ReservedQty)
	}
}
