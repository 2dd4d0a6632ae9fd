package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DisposalService 报废单。审批通过后按批次扣减库存，完成时记录处置方式。
type DisposalService struct {
	db        *gorm.DB
	engine    *WorkflowEngine
	ledger    *LedgerService
	allocator *AllocationService
	seq       *SequenceService
}

func NewDisposalService(db *gorm.DB, engine *WorkflowEngine, ledger *LedgerService, allocator *AllocationService, seq *SequenceService) *DisposalService {
	return &DisposalService{db: db, engine: engine, ledger: ledger, allocator: allocator, seq: seq}
}

type CreateDisposalRequest struct {
	WarehouseID string               `json:"warehouse_id" binding:"required"`
	Reason      string               `json:"reason" binding:"required"`
	Items       []CreateDisposalItem `json:"items" binding:"required,min=1"`
}

type CreateDisposalItem struct {
	ProductID   string  `json:"product_id" binding:"required"`
	ProductCode string  `json:"product_code"`
	PinnedLotID *string `json:"pinned_lot_id"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
}

// Create 创建报废单
func (s *DisposalService) Create(ctx context.Context, tenantID string, req CreateDisposalRequest, userID string) (*entity.DisposalOrder, error) {
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: 报废数量必须为正数", ErrValidation)
		}
	}

	var dsp *entity.DisposalOrder
	err := runInTx(ctx, s.db, func(tx *gorm.DB) error {
		var wh entity.Warehouse
		if err := tx.Where("id = ? AND tenant_id = ? AND deleted_at IS NULL", req.WarehouseID, tenantID).
			First(&wh).Error; err != nil {
			if notFound(err) {
				return fmt.Errorf("%w: 仓库 %s", ErrNotFound, req.WarehouseID)
			}
			return err
		}

		docNo, err := s.seq.Next(ctx, tx, tenantID, entity.DocKindDisposal)
		if err != nil {
			return fmt.Errorf("生成单据编号失败: %w", err)
		}

		dsp = &entity.DisposalOrder{
			ID:          uuid.New().String(),
			TenantID:    tenantID,
			DocNo:       docNo,
			WarehouseID: req.WarehouseID,
			Status:      entity.DisposalStatusPending,
			Reason:      req.Reason,
			RequestedBy: userID,
		}
		for _, item := range req.Items {
			dsp.Items = append(dsp.Items, entity.DisposalItem{
				ID:           uuid.New().String(),
				DisposalID:   dsp.ID,
				ProductID:    item.ProductID,
				ProductCode:  item.ProductCode,
				PinnedLotID:  item.PinnedLotID,
				RequestedQty: item.Quantity,
			})
		}
		if err := tx.Create(dsp).Error; err != nil {
			return fmt.Errorf("创建报废单失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dsp, nil
}

func (s *DisposalService) Get(ctx context.Context, tenantID, id string) (*entity.DisposalOrder, error) {
	var dsp entity.DisposalOrder
	err := s.db.WithContext(ctx).
		Preload("Items").Preload("Items.Allocations").
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&dsp).Error
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: 报废单 %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &dsp, nil
}

func (s *DisposalService) List(ctx context.Context, tenantID string, params ListParams) ([]entity.DisposalOrder, int64, error) {
	params.normalize()
	query := s.db.WithContext(ctx).Model(&entity.DisposalOrder{}).Where("tenant_id = ?", tenantID)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.DisposalOrder
	err := query.Preload("Items").
		Order("created_at DESC").
		Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize).
		Find(&list).Error
	return list, total, err
}

// Approve 审批通过：批准量取申请量
func (s *DisposalService) Approve(ctx context.Context, tenantID, id, userID string) (*entity.DisposalOrder, error) {
	dsp, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, disposalTransitions, dsp, ActionApprove, func(tx *gorm.DB) (string, error) {
		now := time.Now()
		if err := tx.Model(dsp).Updates(map[string]interface{}{
			"approved_by": userID, "approved_at": now,
		}).Error; err != nil {
			return "", err
		}
		if err := tx.Model(&entity.DisposalItem{}).
			Where("disposal_id = ?", dsp.ID).
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
func (s *DisposalService) Reject(ctx context.Context, tenantID, id, userID, reason string) (*entity.DisposalOrder, error) {
	dsp, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, disposalTransitions, dsp, ActionReject, func(tx *gorm.DB) (string, error) {
		now := time.Now()
		return "", tx.Model(dsp).Updates(map[string]interface{}{
			"approved_by": userID, "approved_at": now, "reject_reason": reason,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// Process 报废处理：按批次扣减库存。任何一行库存不足则整单失败，
// 单据停留在 APPROVED。
func (s *DisposalService) Process(ctx context.Context, tenantID, id, userID string) (*entity.DisposalOrder, error) {
	dsp, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, disposalTransitions, dsp, ActionExecute, func(tx *gorm.DB) (string, error) {
		var items []entity.DisposalItem
		if err := tx.Where("disposal_id = ?", dsp.ID).Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
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

			allocations, err := s.allocator.Allocate(ctx, tx, tenantID, dsp.WarehouseID, item.ProductID, qty, item.PinnedLotID)
			if err != nil {
				return "", fmt.Errorf("行项 %s 分配失败: %w", item.ProductID, err)
			}

			for _, alloc := range allocations {
				record, err := s.ledger.Apply(ctx, tx, ApplyInput{
					TenantID:      tenantID,
					WarehouseID:   dsp.WarehouseID,
					ProductID:     item.ProductID,
					Type:          entity.TxTypeDisposalOut,
					Quantity:      alloc.Quantity,
					LotID:         alloc.LotID,
					ReferenceType: entity.DocKindDisposal,
					ReferenceID:   dsp.ID,
					ReferenceNo:   dsp.DocNo,
					ActorID:       userID,
				})
				if err != nil {
					return "", err
				}
				if err := tx.Create(&entity.ItemAllocation{
					ID:        uuid.New().String(),
					ItemID:    item.ID,
					DocKind:   entity.DocKindDisposal,
					LotID:     alloc.LotID,
					LotNo:     alloc.LotNo,
					Quantity:  alloc.Quantity,
					StockTxID: record.ID,
				}).Error; err != nil {
					return "", fmt.Errorf("写入分配记录失败: %w", err)
				}
			}

			if err := tx.Model(item).Update("executed_qty", qty).Error; err != nil {
				return "", err
			}
		}

		now := time.Now()
		return "", tx.Model(dsp).Update("processed_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

type CompleteDisposalRequest struct {
	Method   string `json:"method" binding:"required"`
	Location string `json:"location"`
}

// Complete 完成报废，记录处置方式和地点
func (s *DisposalService) Complete(ctx context.Context, tenantID, id string, req CompleteDisposalRequest) (*entity.DisposalOrder, error) {
	if req.Method == "" {
		return nil, fmt.Errorf("%w: 必须填写处置方式", ErrValidation)
	}
	dsp, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, disposalTransitions, dsp, ActionComplete, func(tx *gorm.DB) (string, error) {
		now := time.Now()
		return "", tx.Model(dsp).Updates(map[string]interface{}{
			"method": req.Method, "location": req.Location, "completed_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// Cancel 取消。已处理的报废单不可取消。
func (s *DisposalService) Cancel(ctx context.Context, tenantID, id, reason string) (*entity.DisposalOrder, error) {
	dsp, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, disposalTransitions, dsp, ActionCancel, func(tx *gorm.DB) (string, error) {
		return "", tx.Model(dsp).Update("cancel_reason", reason).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}
