package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReturnService 退料单。未使用退回直接增加库存；
// 不良品退回收货后进入检验，检验结论决定回库还是隔离。
type ReturnService struct {
	db      *gorm.DB
	engine  *WorkflowEngine
	ledger  *LedgerService
	quality *QualityService
	seq     *SequenceService
}

func NewReturnService(db *gorm.DB, engine *WorkflowEngine, ledger *LedgerService, quality *QualityService, seq *SequenceService) *ReturnService {
	return &ReturnService{db: db, engine: engine, ledger: ledger, quality: quality, seq: seq}
}

type CreateReturnRequest struct {
	WarehouseID string             `json:"warehouse_id" binding:"required"`
	ReturnType  string             `json:"return_type"`
	Notes       string             `json:"notes"`
	Items       []CreateReturnItem `json:"items" binding:"required,min=1"`
}

type CreateReturnItem struct {
	ProductID   string  `json:"product_id" binding:"required"`
	ProductCode string  `json:"product_code"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
}

// Create 创建退料单
func (s *ReturnService) Create(ctx context.Context, tenantID string, req CreateReturnRequest, userID string) (*entity.ReturnOrder, error) {
	returnType := req.ReturnType
	if returnType == "" {
		returnType = entity.ReturnTypeUnused
	}
	if returnType != entity.ReturnTypeUnused && returnType != entity.ReturnTypeDefective {
		return nil, fmt.Errorf("%w: 无效退料类型 %s", ErrValidation, returnType)
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: 退料数量必须为正数", ErrValidation)
		}
	}

	var ret *entity.ReturnOrder
	err := runInTx(ctx, s.db, func(tx *gorm.DB) error {
		var wh entity.Warehouse
		if err := tx.Where("id = ? AND tenant_id = ? AND deleted_at IS NULL", req.WarehouseID, tenantID).
			First(&wh).Error; err != nil {
			if notFound(err) {
				return fmt.Errorf("%w: 仓库 %s", ErrNotFound, req.WarehouseID)
			}
			return err
		}

		docNo, err := s.seq.Next(ctx, tx, tenantID, entity.DocKindReturn)
		if err != nil {
			return fmt.Errorf("生成单据编号失败: %w", err)
		}

		ret = &entity.ReturnOrder{
			ID:          uuid.New().String(),
			TenantID:    tenantID,
			DocNo:       docNo,
			WarehouseID: req.WarehouseID,
			ReturnType:  returnType,
			Status:      entity.ReturnStatusPending,
			RequestedBy: userID,
			Notes:       req.Notes,
		}
		for _, item := range req.Items {
			ret.Items = append(ret.Items, entity.ReturnItem{
				ID:               uuid.New().String(),
				ReturnID:         ret.ID,
				ProductID:        item.ProductID,
				ProductCode:      item.ProductCode,
				RequestedQty:     item.Quantity,
				InspectionStatus: entity.InspectionNotRequired,
			})
		}
		if err := tx.Create(ret).Error; err != nil {
			return fmt.Errorf("创建退料单失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *ReturnService) Get(ctx context.Context, tenantID, id string) (*entity.ReturnOrder, error) {
	var ret entity.ReturnOrder
	err := s.db.WithContext(ctx).
		Preload("Items").Preload("Items.Allocations").
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&ret).Error
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: 退料单 %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &ret, nil
}

func (s *ReturnService) List(ctx context.Context, tenantID string, params ListParams) ([]entity.ReturnOrder, int64, error) {
	params.normalize()
	query := s.db.WithContext(ctx).Model(&entity.ReturnOrder{}).Where("tenant_id = ?", tenantID)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.ReturnOrder
	err := query.Preload("Items").
		Order("created_at DESC").
		Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize).
		Find(&list).Error
	return list, total, err
}

// Approve 审批通过：批准量取申请量
func (s *ReturnService) Approve(ctx context.Context, tenantID, id, userID string) (*entity.ReturnOrder, error) {
	ret, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, returnTransitions, ret, ActionApprove, func(tx *gorm.DB) (string, error) {
		now := time.Now()
		if err := tx.Model(ret).Updates(map[string]interface{}{
			"approved_by": userID, "approved_at": now,
		}).Error; err != nil {
			return "", err
		}
		if err := tx.Model(&entity.ReturnItem{}).
			Where("return_id = ?", ret.ID).
			Update("approved_qty", gorm.Expr("requested_qty")).Error; err != nil {
			return "", fmt.Errorf("更新批准数量失败: %w", err)
		}
		return "", nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// Reject 驳回
func (s *ReturnService) Reject(ctx context.Context, tenantID, id, userID, reason string) (*entity.ReturnOrder, error) {
	ret, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, returnTransitions, ret, ActionReject, func(tx *gorm.DB) (string, error) {
		now := time.Now()
		return "", tx.Model(ret).Updates(map[string]interface{}{
			"approved_by": userID, "approved_at": now, "reject_reason": reason,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// Receive 收货。未使用退回直接计入库存；不良品退回不落账，
// 行项置为待检，单据自动进入 INSPECTING，待检验结论决定去向。
func (s *ReturnService) Receive(ctx context.Context, tenantID, id, userID string) (*entity.ReturnOrder, error) {
	ret, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	needsInspection := s.quality.RequiresReturnInspection(ret.ReturnType)

	err = s.engine.Transition(ctx, returnTransitions, ret, ActionExecute, func(tx *gorm.DB) (string, error) {
		var items []entity.ReturnItem
		if err := tx.Where("return_id = ?", ret.ID).Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
			return "", err
		}

		for i := range items {
			item := &items[i]
			qty := item.RequestedQty
			if item.ApprovedQty != nil {
				qty = *item.ApprovedQty
			}
			if qty <= 0 {
				continue
			}

			item.ExecutedQty = &qty
			if needsInspection {
				// 不良品在检验结论出来之前不进台账
				item.InspectionStatus = entity.InspectionPending
			} else {
				item.InspectionStatus = entity.InspectionNotRequired
				if _, err := s.ledger.Apply(ctx, tx, ApplyInput{
					TenantID:      tenantID,
					WarehouseID:   ret.WarehouseID,
					ProductID:     item.ProductID,
					Type:          entity.TxTypeReturnIn,
					Quantity:      qty,
					ReferenceType: entity.DocKindReturn,
					ReferenceID:   ret.ID,
					ReferenceNo:   ret.DocNo,
					ActorID:       userID,
				}); err != nil {
					return "", err
				}
			}
			if err := tx.Model(item).Updates(map[string]interface{}{
				"executed_qty": qty, "inspection_status": item.InspectionStatus,
			}).Error; err != nil {
				return "", err
			}
		}

		now := time.Now()
		if err := tx.Model(ret).Update("received_at", now).Error; err != nil {
			return "", err
		}
		if needsInspection {
			return entity.ReturnStatusInspecting, nil
		}
		return "", nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// Complete 完成退料。任一行项检验结论未出时不允许完成。
func (s *ReturnService) Complete(ctx context.Context, tenantID, id string) (*entity.ReturnOrder, error) {
	ret, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, returnTransitions, ret, ActionComplete, func(tx *gorm.DB) (string, error) {
		var pending int64
		if err := tx.Model(&entity.ReturnItem{}).
			Where("return_id = ? AND inspection_status = ?", ret.ID, entity.InspectionPending).
			Count(&pending).Error; err != nil {
			return "", err
		}
		if pending > 0 {
			return "", fmt.Errorf("%w: 还有 %d 个行项等待检验结论", ErrInvalidStateTransition, pending)
		}
		now := time.Now()
		return "", tx.Model(ret).Update("completed_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// Cancel 取消。收货后不可取消。
func (s *ReturnService) Cancel(ctx context.Context, tenantID, id, reason string) (*entity.ReturnOrder, error) {
	ret, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, returnTransitions, ret, ActionCancel, func(tx *gorm.DB) (string, error) {
		return "", tx.Model(ret).Update("cancel_reason", reason).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}
