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

// InspectionResult 检验结论
const (
	InspectionResultPass = "PASS"
	InspectionResultFail = "FAIL"
)

// QualityService 质量门。决定行项是否需要检验，并把检验结论
// 路由到正确的去向：合格回原仓，不合格进隔离仓。
// 未配置隔离仓时不合格结论直接报错，不允许静默跳过隔离入库。
type QualityService struct {
	db     *gorm.DB
	ledger *LedgerService
}

func NewQualityService(db *gorm.DB, ledger *LedgerService) *QualityService {
	return &QualityService{db: db, ledger: ledger}
}

// RequiresReturnInspection 不良品退回需要检验，其余退回类型不需要
func (s *QualityService) RequiresReturnInspection(returnType string) bool {
	return returnType == entity.ReturnTypeDefective
}

// RequiresShipmentInspection 产品存在有效出货质量标准时发货行项需要检验
func (s *QualityService) RequiresShipmentInspection(ctx context.Context, tenantID, productID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entity.QualityStandard{}).
		Where("tenant_id = ? AND product_id = ? AND direction = ? AND active = true AND deleted_at IS NULL",
			tenantID, productID, entity.QualityDirectionOutgoing).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ResolveReturnItem 记录退料行项的检验结论。
// PASS：铸造合格新批次回退料目标仓；FAIL：铸造不合格新批次入隔离仓。
func (s *QualityService) ResolveReturnItem(ctx context.Context, tenantID, itemID, result, actorID string) (*entity.ReturnItem, error) {
	if result != InspectionResultPass && result != InspectionResultFail {
		return nil, fmt.Errorf("%w: 无效检验结论 %s", ErrValidation, result)
	}

	var item entity.ReturnItem
	err := s.ledger.RunInTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", itemID).First(&item).Error; err != nil {
			if notFound(err) {
				return fmt.Errorf("%w: 退料行项 %s", ErrNotFound, itemID)
			}
			return err
		}
		if item.InspectionStatus != entity.InspectionPending {
			return fmt.Errorf("%w: 行项检验状态为 %s", ErrInvalidStateTransition, item.InspectionStatus)
		}
		if item.ExecutedQty == nil || *item.ExecutedQty <= 0 {
			return fmt.Errorf("%w: 行项尚未收货", ErrInvalidStateTransition)
		}

		var ret entity.ReturnOrder
		if err := tx.Where("id = ? AND tenant_id = ?", item.ReturnID, tenantID).First(&ret).Error; err != nil {
			if notFound(err) {
				return fmt.Errorf("%w: 退料单 %s", ErrNotFound, item.ReturnID)
			}
			return err
		}

		qty := *item.ExecutedQty
		var record *entity.StockTransaction
		var applyErr error
		if result == InspectionResultPass {
			record, applyErr = s.ledger.Apply(ctx, tx, ApplyInput{
				TenantID:          tenantID,
				WarehouseID:       ret.WarehouseID,
				ProductID:         item.ProductID,
				Type:              entity.TxTypeRestoreIn,
				Quantity:          qty,
				MintQualityStatus: entity.LotQualityPassed,
				ReferenceType:     entity.DocKindReturn,
				ReferenceID:       ret.ID,
				ReferenceNo:       ret.DocNo,
				ActorID:           actorID,
			})
		} else {
			quarantine, err := s.quarantineWarehouse(tx, tenantID)
			if err != nil {
				return err
			}
			record, applyErr = s.ledger.Apply(ctx, tx, ApplyInput{
				TenantID:          tenantID,
				WarehouseID:       quarantine.ID,
				ProductID:         item.ProductID,
				Type:              entity.TxTypeQuarantineIn,
				Quantity:          qty,
				MintQualityStatus: entity.LotQualityFailed,
				ReferenceType:     entity.DocKindReturn,
				ReferenceID:       ret.ID,
				ReferenceNo:       ret.DocNo,
				ActorID:           actorID,
			})
		}
		if applyErr != nil {
			return applyErr
		}

		status := entity.InspectionPassed
		if result == InspectionResultFail {
			status = entity.InspectionFailed
		}
		item.InspectionStatus = status
		item.ResultLotID = record.LotID
		return tx.Save(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ResolveShipmentItem 记录发货行项的检验结论。
// PASS 仅解除确认闸门；FAIL 把已扣减的货以不合格新批次转入隔离仓，发货单无法确认。
func (s *QualityService) ResolveShipmentItem(ctx context.Context, tenantID, itemID, result, actorID string) (*entity.ShipmentItem, error) {
	if result != InspectionResultPass && result != InspectionResultFail {
		return nil, fmt.Errorf("%w: 无效检验结论 %s", ErrValidation, result)
	}

	var item entity.ShipmentItem
	err := s.ledger.RunInTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", itemID).First(&item).Error; err != nil {
			if notFound(err) {
				return fmt.Errorf("%w: 发货行项 %s", ErrNotFound, itemID)
			}
			return err
		}
		if item.InspectionStatus != entity.InspectionPending {
			return fmt.Errorf("%w: 行项检验状态为 %s", ErrInvalidStateTransition, item.InspectionStatus)
		}

		var shp entity.ShipmentOrder
		if err := tx.Where("id = ? AND tenant_id = ?", item.ShipmentID, tenantID).First(&shp).Error; err != nil {
			if notFound(err) {
				return fmt.Errorf("%w: 发货单 %s", ErrNotFound, item.ShipmentID)
			}
			return err
		}
		// 已取消的发货单货已冲销回库，不合格结论若再隔离入库会重复计数
		if shp.Status == entity.ShipmentStatusCancelled {
			return fmt.Errorf("%w: 发货单 %s 已取消", ErrInvalidStateTransition, shp.DocNo)
		}

		if result == InspectionResultPass {
			item.InspectionStatus = entity.InspectionPassed
			return tx.Save(&item).Error
		}

		if item.ExecutedQty == nil || *item.ExecutedQty <= 0 {
			return fmt.Errorf("%w: 行项尚未出库", ErrInvalidStateTransition)
		}
		quarantine, err := s.quarantineWarehouse(tx, tenantID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.Apply(ctx, tx, ApplyInput{
			TenantID:          tenantID,
			WarehouseID:       quarantine.ID,
			ProductID:         item.ProductID,
			Type:              entity.TxTypeQuarantineIn,
			Quantity:          *item.ExecutedQty,
			MintQualityStatus: entity.LotQualityFailed,
			ReferenceType:     entity.DocKindShipment,
			ReferenceID:       shp.ID,
			ReferenceNo:       shp.DocNo,
			ActorID:           actorID,
		}); err != nil {
			return err
		}
		item.InspectionStatus = entity.InspectionFailed
		return tx.Save(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// quarantineWarehouse 查找租户的隔离仓
func (s *QualityService) quarantineWarehouse(tx *gorm.DB, tenantID string) (*entity.Warehouse, error) {
	var wh entity.Warehouse
	err := tx.Where("tenant_id = ? AND type = ? AND status = ? AND deleted_at IS NULL",
		tenantID, entity.WarehouseTypeQuarantine, entity.WarehouseStatusActive).
		Order("created_at ASC").First(&wh).Error
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: 未配置隔离仓，不合格品无法入库", ErrNotFound)
		}
		return nil, err
	}
	return &wh, nil
}

// CreateStandardRequest 创建质量标准请求
type CreateStandardRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Direction string `json:"direction"`
	Name      string `json:"name" binding:"required"`
	Criteria  string `json:"criteria"`
}

// CreateStandard 创建质量标准
func (s *QualityService) CreateStandard(ctx context.Context, tenantID string, req CreateStandardRequest, userID string) (*entity.QualityStandard, error) {
	direction := req.Direction
	if direction == "" {
		direction = entity.QualityDirectionOutgoing
	}
	std := &entity.QualityStandard{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		ProductID: req.ProductID,
		Direction: direction,
		Name:      req.Name,
		Criteria:  req.Criteria,
		Active:    true,
		CreatedBy: userID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(std).Error; err != nil {
		return nil, fmt.Errorf("创建质量标准失败: %w", err)
	}
	return std, nil
}

// ListStandards 查询质量标准
func (s *QualityService) ListStandards(ctx context.Context, tenantID, productID string) ([]entity.QualityStandard, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ? AND deleted_at IS NULL", tenantID)
	if productID != "" {
		query = query.Where("product_id = ?", productID)
	}
	var items []entity.QualityStandard
	err := query.Order("created_at DESC").Find(&items).Error
	return items, err
}
