package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReservationService 预留管理。把数量在可用池与预留池之间移动，
// 不产生库存流水（货没有动，只是占用状态变了）。
// 与 LedgerService 作用于相同的库存行，靠行锁保证互斥。
type ReservationService struct {
	db     *gorm.DB
	ledger *LedgerService
}

func NewReservationService(db *gorm.DB, ledger *LedgerService) *ReservationService {
	return &ReservationService{db: db, ledger: ledger}
}

// Reserve 预留：available -= qty, reserved += qty
func (s *ReservationService) Reserve(ctx context.Context, tenantID, warehouseID, productID string, lotID *string, quantity float64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: 预留数量必须为正数", ErrValidation)
	}
	return s.ledger.RunInTx(ctx, func(tx *gorm.DB) error {
		inv, err := s.lockRecord(tx, tenantID, warehouseID, productID, lotID)
		if err != nil {
			return err
		}
		if inv.AvailableQty < quantity {
			return fmt.Errorf("%w: 需要%.4f, 可用%.4f", ErrInsufficientInventory, quantity, inv.AvailableQty)
		}
		now := time.Now()
		inv.AvailableQty -= quantity
		inv.ReservedQty += quantity
		inv.UpdatedAt = now
		return tx.Save(inv).Error
	})
}

// Release 释放预留：reserved -= qty, available += qty。
// 释放量以当前预留量为上限，预留量不会变负。
func (s *ReservationService) Release(ctx context.Context, tenantID, warehouseID, productID string, lotID *string, quantity float64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: 释放数量必须为正数", ErrValidation)
	}
	return s.ledger.RunInTx(ctx, func(tx *gorm.DB) error {
		inv, err := s.lockRecord(tx, tenantID, warehouseID, productID, lotID)
		if err != nil {
			return err
		}
		release := quantity
		if release > inv.ReservedQty {
			release = inv.ReservedQty
		}
		inv.ReservedQty -= release
		inv.AvailableQty += release
		return tx.Save(inv).Error
	})
}

func (s *ReservationService) lockRecord(tx *gorm.DB, tenantID, warehouseID, productID string, lotID *string) (*entity.Inventory, error) {
	query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND warehouse_id = ? AND product_id = ?", tenantID, warehouseID, productID)
	if lotID != nil {
		query = query.Where("lot_id = ?", *lotID)
	} else {
		query = query.Where("lot_id IS NULL")
	}

	var inv entity.Inventory
	if err := query.First(&inv).Error; err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: 库存记录 (%s, %s)", ErrNotFound, warehouseID, productID)
		}
		return nil, err
	}
	return &inv, nil
}
