package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Allocation 一条批次分配：从哪个批次取多少
type Allocation struct {
	LotID    string  `json:"lot_id"`
	LotNo    string  `json:"lot_no"`
	Quantity float64 `json:"quantity"`
}

// AllocationService 批次分配引擎。按 FIFO（最早收货优先）或指定批次
// 选出满足需求量的批次组合。本身不修改任何持久化状态；
// 落账由 LedgerService 在同一事务内紧随其后完成。
type AllocationService struct {
	db *gorm.DB
}

func NewAllocationService(db *gorm.DB) *AllocationService {
	return &AllocationService{db: db}
}

// Allocate 为 (tenant, warehouse, product) 的需求量挑选批次。
// 指定批次时必须整量覆盖，不接受部分分配。
// FIFO 路径只考虑质量合格、激活且有可用量的批次，
// 按收货日期升序、批次号升序保证确定性。
// 凑不满整单时丢弃全部部分分配，返回 ErrInsufficientInventory。
func (s *AllocationService) Allocate(ctx context.Context, tx *gorm.DB, tenantID, warehouseID, productID string, required float64, pinnedLotID *string) ([]Allocation, error) {
	if required < 0 {
		return nil, fmt.Errorf("%w: 需求量不能为负", ErrValidation)
	}
	if required == 0 {
		return []Allocation{}, nil
	}

	if pinnedLotID != nil && *pinnedLotID != "" {
		return s.allocatePinned(tx, tenantID, *pinnedLotID, required)
	}
	return s.allocateFIFO(tx, tenantID, warehouseID, productID, required)
}

func (s *AllocationService) allocatePinned(tx *gorm.DB, tenantID, lotID string, required float64) ([]Allocation, error) {
	var lot entity.Lot
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND tenant_id = ? AND deleted_at IS NULL", lotID, tenantID).
		First(&lot).Error; err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: 批次 %s", ErrNotFound, lotID)
		}
		return nil, err
	}
	// 指定批次不限质量状态：隔离仓中不合格批次的报废也走这条路径
	if !lot.Active {
		return nil, fmt.Errorf("%w: 批次 %s 已停用", ErrInsufficientInventory, lot.LotNo)
	}
	if lot.CurrentQty < required {
		// 指定批次不接受欠量分配
		return nil, fmt.Errorf("%w: 批次 %s 余量%.4f, 需要%.4f", ErrInsufficientInventory, lot.LotNo, lot.CurrentQty, required)
	}
	return []Allocation{{LotID: lot.ID, LotNo: lot.LotNo, Quantity: required}}, nil
}

func (s *AllocationService) allocateFIFO(tx *gorm.DB, tenantID, warehouseID, productID string, required float64) ([]Allocation, error) {
	// 锁定候选批次的库存行，保证分配与随后的落账之间无丢失更新
	var candidates []entity.Inventory
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "mes_inventory"}}).
		Joins("JOIN mes_lots ON mes_lots.id = mes_inventory.lot_id").
		Where("mes_inventory.tenant_id = ? AND mes_inventory.warehouse_id = ? AND mes_inventory.product_id = ?",
			tenantID, warehouseID, productID).
		Where("mes_lots.quality_status = ? AND mes_lots.active = true AND mes_lots.deleted_at IS NULL", entity.LotQualityPassed).
		Where("mes_inventory.available_qty > 0").
		Order("mes_lots.received_at ASC, mes_lots.lot_no ASC").
		Preload("Lot").
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("查询候选批次失败: %w", err)
	}

	remaining := required
	var result []Allocation
	for i := range candidates {
		if remaining <= 0 {
			break
		}
		inv := &candidates[i]
		if inv.Lot == nil {
			continue
		}
		take := remaining
		if inv.AvailableQty < take {
			take = inv.AvailableQty
		}
		result = append(result, Allocation{LotID: inv.Lot.ID, LotNo: inv.Lot.LotNo, Quantity: take})
		remaining -= take
	}

	if remaining > 0 {
		// 凑不满整单：丢弃全部部分分配
		return nil, fmt.Errorf("%w: 需要%.4f, 缺口%.4f", ErrInsufficientInventory, required, remaining)
	}
	return result, nil
}
