package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxTxRetries 并发冲突（死锁/串行化失败）重试上限
const maxTxRetries = 3

// LedgerService 库存台账。所有库存余额变更和流水追加都经过这里，
// 余额变更与流水落库在同一事务内完成，要么都可见要么都不可见。
type LedgerService struct {
	db  *gorm.DB
	seq *SequenceService
}

func NewLedgerService(db *gorm.DB, seq *SequenceService) *LedgerService {
	return &LedgerService{db: db, seq: seq}
}

// outboundTypes 出库类型集合
var outboundTypes = map[string]bool{
	entity.TxTypeIssueOut:    true,
	entity.TxTypeDisposalOut: true,
	entity.TxTypeShippingOut: true,
}

// mintingTypes 需要铸造新批次的入库类型
var mintingTypes = map[string]bool{
	entity.TxTypeRestoreIn:    true,
	entity.TxTypeQuarantineIn: true,
	entity.TxTypeProductionIn: true,
}

// ApplyInput 一次台账变更
type ApplyInput struct {
	TenantID    string
	WarehouseID string
	ProductID   string
	Type        string
	Quantity    float64 // 数量恒为正，方向由 Type 决定

	// 出库必填：扣减的批次
	LotID string

	// 铸造批次入库（RESTORE_IN/QUARANTINE_IN/PRODUCTION_IN）必填
	MintQualityStatus string

	ReferenceType string
	ReferenceID   string
	ReferenceNo   string
	Notes         string
	ActorID       string
}

// RunInTx 在事务内执行台账操作，并对数据库并发错误做有限次重试
func (s *LedgerService) RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return runInTx(ctx, s.db, fn)
}

// Apply 应用一次库存变更并追加流水。必须在调用方事务内执行。
func (s *LedgerService) Apply(ctx context.Context, tx *gorm.DB, in ApplyInput) (*entity.StockTransaction, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: 数量必须为正数", ErrValidation)
	}

	switch {
	case outboundTypes[in.Type]:
		return s.applyOutbound(ctx, tx, in)
	case mintingTypes[in.Type]:
		return s.applyMinting(ctx, tx, in)
	case in.Type == entity.TxTypeReturnIn:
		return s.applyReturnIn(ctx, tx, in)
	default:
		return nil, fmt.Errorf("%w: 未知交易类型 %s", ErrValidation, in.Type)
	}
}

// applyOutbound 出库：校验可用量，扣减库存和批次余量，批次耗尽时停用
func (s *LedgerService) applyOutbound(ctx context.Context, tx *gorm.DB, in ApplyInput) (*entity.StockTransaction, error) {
	if in.LotID == "" {
		return nil, fmt.Errorf("%w: 出库必须指定批次", ErrValidation)
	}

	var lot entity.Lot
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND tenant_id = ? AND deleted_at IS NULL", in.LotID, in.TenantID).
		First(&lot).Error; err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: 批次 %s", ErrNotFound, in.LotID)
		}
		return nil, err
	}

	inv, err := s.lockInventory(tx, in.TenantID, in.WarehouseID, in.ProductID, &in.LotID, false)
	if err != nil {
		return nil, err
	}
	if inv.AvailableQty < in.Quantity {
		return nil, fmt.Errorf("%w: 需要%.4f, 可用%.4f", ErrInsufficientInventory, in.Quantity, inv.AvailableQty)
	}
	if lot.CurrentQty < in.Quantity {
		return nil, fmt.Errorf("%w: 批次 %s 余量不足", ErrInsufficientInventory, lot.LotNo)
	}

	now := time.Now()
	inv.AvailableQty -= in.Quantity
	inv.LastTxAt = &now
	inv.LastTxType = in.Type
	if err := tx.Save(inv).Error; err != nil {
		return nil, fmt.Errorf("更新库存失败: %w", err)
	}

	lot.CurrentQty -= in.Quantity
	if lot.CurrentQty <= 0 {
		lot.CurrentQty = 0
		lot.Active = false
	}
	if err := tx.Save(&lot).Error; err != nil {
		return nil, fmt.Errorf("更新批次失败: %w", err)
	}

	return s.appendTransaction(ctx, tx, in, &lot, -in.Quantity, nil)
}

// applyMinting 铸造新批次入库：restore/quarantine/production 总是产生全新批次
func (s *LedgerService) applyMinting(ctx context.Context, tx *gorm.DB, in ApplyInput) (*entity.StockTransaction, error) {
	if in.MintQualityStatus == "" {
		return nil, fmt.Errorf("%w: 铸造批次必须指定质量状态", ErrValidation)
	}

	lotNo, err := s.seq.Next(ctx, tx, in.TenantID, "LOT")
	if err != nil {
		return nil, fmt.Errorf("生成批次号失败: %w", err)
	}

	now := time.Now()
	lot := &entity.Lot{
		ID:            uuid.New().String(),
		TenantID:      in.TenantID,
		LotNo:         lotNo,
		ProductID:     in.ProductID,
		WarehouseID:   in.WarehouseID,
		InitialQty:    in.Quantity,
		CurrentQty:    in.Quantity,
		QualityStatus: in.MintQualityStatus,
		ReceivedAt:    now,
		Active:        true,
	}
	if err := tx.Create(lot).Error; err != nil {
		return nil, fmt.Errorf("创建批次失败: %w", err)
	}

	inv, err := s.lockInventory(tx, in.TenantID, in.WarehouseID, in.ProductID, &lot.ID, true)
	if err != nil {
		return nil, err
	}
	inv.AvailableQty += in.Quantity
	inv.LastTxAt = &now
	inv.LastTxType = in.Type
	if err := tx.Save(inv).Error; err != nil {
		return nil, fmt.Errorf("更新库存失败: %w", err)
	}

	return s.appendTransaction(ctx, tx, in, lot, in.Quantity, nil)
}

// applyReturnIn 退料入库：不铸造批次，计入 (仓库, 产品) 的无批次库存
func (s *LedgerService) applyReturnIn(ctx context.Context, tx *gorm.DB, in ApplyInput) (*entity.StockTransaction, error) {
	inv, err := s.lockInventory(tx, in.TenantID, in.WarehouseID, in.ProductID, nil, true)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	inv.AvailableQty += in.Quantity
	inv.LastTxAt = &now
	inv.LastTxType = in.Type
	if err := tx.Save(inv).Error; err != nil {
		return nil, fmt.Errorf("更新库存失败: %w", err)
	}

	return s.appendTransaction(ctx, tx, in, nil, in.Quantity, nil)
}

// Reverse 冲销一条历史流水：追加一条数量取反的新流水并反向回放余额，
// 原始流水保持不变。出库冲销会恢复批次余量并重新激活批次。
func (s *LedgerService) Reverse(ctx context.Context, tx *gorm.DB, originalTxID, actorID, notes string) (*entity.StockTransaction, error) {
	var original entity.StockTransaction
	if err := tx.Where("id = ?", originalTxID).First(&original).Error; err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: 流水 %s", ErrNotFound, originalTxID)
		}
		return nil, err
	}
	if original.Type == entity.TxTypeReversal {
		return nil, fmt.Errorf("%w: 冲销流水不能再次冲销", ErrValidation)
	}

	inv, err := s.lockInventory(tx, original.TenantID, original.WarehouseID, original.ProductID, original.LotID, true)
	if err != nil {
		return nil, err
	}

	reversedQty := -original.Quantity
	if inv.AvailableQty+reversedQty < 0 {
		return nil, fmt.Errorf("%w: 冲销后可用库存为负", ErrInsufficientInventory)
	}

	now := time.Now()
	inv.AvailableQty += reversedQty
	inv.LastTxAt = &now
	inv.LastTxType = entity.TxTypeReversal
	if err := tx.Save(inv).Error; err != nil {
		return nil, fmt.Errorf("更新库存失败: %w", err)
	}

	var lot *entity.Lot
	if original.LotID != nil {
		var l entity.Lot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", *original.LotID).First(&l).Error; err != nil {
			return nil, fmt.Errorf("批次不存在: %w", err)
		}
		l.CurrentQty += reversedQty
		if l.CurrentQty < 0 {
			return nil, fmt.Errorf("%w: 冲销后批次余量为负", ErrInsufficientInventory)
		}
		l.Active = l.CurrentQty > 0
		if err := tx.Save(&l).Error; err != nil {
			return nil, fmt.Errorf("更新批次失败: %w", err)
		}
		lot = &l
	}

	in := ApplyInput{
		TenantID:      original.TenantID,
		WarehouseID:   original.WarehouseID,
		ProductID:     original.ProductID,
		Type:          entity.TxTypeReversal,
		ReferenceType: original.ReferenceType,
		ReferenceID:   original.ReferenceID,
		ReferenceNo:   original.ReferenceNo,
		Notes:         notes,
		ActorID:       actorID,
	}
	return s.appendTransaction(ctx, tx, in, lot, reversedQty, &original.ID)
}

// appendTransaction 追加一条不可变流水
func (s *LedgerService) appendTransaction(ctx context.Context, tx *gorm.DB, in ApplyInput, lot *entity.Lot, signedQty float64, reversalOf *string) (*entity.StockTransaction, error) {
	txNo, err := s.seq.Next(ctx, tx, in.TenantID, "TX")
	if err != nil {
		return nil, fmt.Errorf("生成流水号失败: %w", err)
	}

	record := &entity.StockTransaction{
		ID:            uuid.New().String(),
		TenantID:      in.TenantID,
		TxNo:          txNo,
		Type:          in.Type,
		WarehouseID:   in.WarehouseID,
		ProductID:     in.ProductID,
		Quantity:      signedQty,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		ReferenceNo:   in.ReferenceNo,
		ReversalOfID:  reversalOf,
		Notes:         in.Notes,
		CreatedBy:     in.ActorID,
	}
	if lot != nil {
		record.LotID = &lot.ID
		record.LotNo = lot.LotNo
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, fmt.Errorf("写入库存流水失败: %w", err)
	}
	return record, nil
}

// lockInventory 锁定并返回库存记录；createIfMissing 时按零余额惰性创建
func (s *LedgerService) lockInventory(tx *gorm.DB, tenantID, warehouseID, productID string, lotID *string, createIfMissing bool) (*entity.Inventory, error) {
	query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND warehouse_id = ? AND product_id = ?", tenantID, warehouseID, productID)
	if lotID != nil {
		query = query.Where("lot_id = ?", *lotID)
	} else {
		query = query.Where("lot_id IS NULL")
	}

	var inv entity.Inventory
	err := query.First(&inv).Error
	if err == nil {
		return &inv, nil
	}
	if !notFound(err) {
		return nil, err
	}
	if !createIfMissing {
		return nil, fmt.Errorf("%w: 库存记录 (%s, %s)", ErrNotFound, warehouseID, productID)
	}

	inv = entity.Inventory{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		WarehouseID: warehouseID,
		ProductID:   productID,
		LotID:       lotID,
	}
	if err := tx.Create(&inv).Error; err != nil {
		return nil, fmt.Errorf("创建库存记录失败: %w", err)
	}
	return &inv, nil
}
