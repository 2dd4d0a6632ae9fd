package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaterialRequestService 领料单。审批通过后按 FIFO 或指定批次分配并出库。
type MaterialRequestService struct {
	db        *gorm.DB
	engine    *WorkflowEngine
	ledger    *LedgerService
	allocator *AllocationService
	seq       *SequenceService
}

func NewMaterialRequestService(db *gorm.DB, engine *WorkflowEngine, ledger *LedgerService, allocator *AllocationService, seq *SequenceService) *MaterialRequestService {
	return &MaterialRequestService{db: db, engine: engine, ledger: ledger, allocator: allocator, seq: seq}
}

type CreateMaterialRequestRequest struct {
	WarehouseID string                      `json:"warehouse_id" binding:"required"`
	Purpose     string                      `json:"purpose"`
	Notes       string                      `json:"notes"`
	Items       []CreateMaterialRequestItem `json:"items" binding:"required,min=1"`
}

type CreateMaterialRequestItem struct {
	ProductID   string  `json:"product_id" binding:"required"`
	ProductCode string  `json:"product_code"`
	PinnedLotID *string `json:"pinned_lot_id"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
}

// Create 创建领料单，初始状态 PENDING
func (s *MaterialRequestService) Create(ctx context.Context, tenantID string, req CreateMaterialRequestRequest, userID string) (*entity.MaterialRequest, error) {
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: 申请数量必须为正数", ErrValidation)
		}
	}

	var mr *entity.MaterialRequest
	err := runInTx(ctx, s.db, func(tx *gorm.DB) error {
		var wh entity.Warehouse
		if err := tx.Where("id = ? AND tenant_id = ? AND deleted_at IS NULL", req.WarehouseID, tenantID).
			First(&wh).Error; err != nil {
			if notFound(err) {
				return fmt.Errorf("%w: 仓库 %s", ErrNotFound, req.WarehouseID)
			}
			return err
		}
		if wh.Status != entity.WarehouseStatusActive {
			return fmt.Errorf("%w: 仓库 %s 已停用", ErrValidation, wh.Code)
		}

		docNo, err := s.seq.Next(ctx, tx, tenantID, entity.DocKindMaterialRequest)
		if err != nil {
			return fmt.Errorf("生成单据编号失败: %w", err)
		}

		mr = &entity.MaterialRequest{
			ID:          uuid.New().String(),
			TenantID:    tenantID,
			DocNo:       docNo,
			WarehouseID: req.WarehouseID,
			Status:      entity.MRStatusPending,
			Purpose:     req.Purpose,
			RequestedBy: userID,
			Notes:       req.Notes,
		}
		for _, item := range req.Items {
			mr.Items = append(mr.Items, entity.MaterialRequestItem{
				ID:           uuid.New().String(),
				RequestID:    mr.ID,
				ProductID:    item.ProductID,
				ProductCode:  item.ProductCode,
				PinnedLotID:  item.PinnedLotID,
				RequestedQty: item.Quantity,
			})
		}
		if err := tx.Create(mr).Error; err != nil {
			return fmt.Errorf("创建领料单失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mr, nil
}

// Get 查询领料单（含行项和分配记录）
func (s *MaterialRequestService) Get(ctx context.Context, tenantID, id string) (*entity.MaterialRequest, error) {
	var mr entity.MaterialRequest
	err := s.db.WithContext(ctx).
		Preload("Items").Preload("Items.Allocations").
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&mr).Error
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: 领料单 %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &mr, nil
}

// ListParams 单据列表查询参数
type ListParams struct {
	Status   string
	Page     int
	PageSize int
}

func (p *ListParams) normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		p.PageSize = 20
	}
}

// List 分页查询领料单
func (s *MaterialRequestService) List(ctx context.Context, tenantID string, params ListParams) ([]entity.MaterialRequest, int64, error) {
	params.normalize()
	query := s.db.WithContext(ctx).Model(&entity.MaterialRequest{}).Where("tenant_id = ?", tenantID)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.MaterialRequest
	err := query.Preload("Items").
		Order("created_at DESC").
		Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize).
		Find(&list).Error
	return list, total, err
}

// Approve 审批通过：批准量取申请量
func (s *MaterialRequestService) Approve(ctx context.Context, tenantID, id, userID string) (*entity.MaterialRequest, error) {
	mr, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, materialRequestTransitions, mr, ActionApprove, func(tx *gorm.DB) (string, error) {
		now := time.Now()
		mr.ApprovedBy = &userID
		mr.ApprovedAt = &now
		if err := tx.Model(mr).Updates(map[string]interface{}{
			"approved_by": userID, "approved_at": now,
		}).Error; err != nil {
			return "", err
		}
		if err := tx.Model(&entity.MaterialRequestItem{}).
			Where("request_id = ?", mr.ID).
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
func (s *MaterialRequestService) Reject(ctx context.Context, tenantID, id, userID, reason string) (*entity.MaterialRequest, error) {
	mr, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, materialRequestTransitions, mr, ActionReject, func(tx *gorm.DB) (string, error) {
		now := time.Now()
		return "", tx.Model(mr).Updates(map[string]interface{}{
			"approved_by": userID, "approved_at": now, "reject_reason": reason,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// Issue 领料出库：逐行分配批次并落账。任何一行分配不足则整单失败，
// 单据停留在 APPROVED，不产生任何库存变更。
func (s *MaterialRequestService) Issue(ctx context.Context, tenantID, id, userID string) (*entity.MaterialRequest, error) {
	mr, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, materialRequestTransitions, mr, ActionExecute, func(tx *gorm.DB) (string, error) {
		var items []entity.MaterialRequestItem
		if err := tx.Where("request_id = ?", mr.ID).Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
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

			allocations, err := s.allocator.Allocate(ctx, tx, tenantID, mr.WarehouseID, item.ProductID, qty, item.PinnedLotID)
			if err != nil {
				return "", fmt.Errorf("行项 %s 分配失败: %w", item.ProductID, err)
			}

			for _, alloc := range allocations {
				record, err := s.ledger.Apply(ctx, tx, ApplyInput{
					TenantID:      tenantID,
					WarehouseID:   mr.WarehouseID,
					ProductID:     item.ProductID,
					Type:          entity.TxTypeIssueOut,
					Quantity:      alloc.Quantity,
					LotID:         alloc.LotID,
					ReferenceType: entity.DocKindMaterialRequest,
					ReferenceID:   mr.ID,
					ReferenceNo:   mr.DocNo,
					ActorID:       userID,
				})
				if err != nil {
					return "", err
				}
				if err := tx.Create(&entity.ItemAllocation{
					ID:        uuid.New().String(),
					ItemID:    item.ID,
					DocKind:   entity.DocKindMaterialRequest,
					LotID:     alloc.LotID,
					LotNo:     alloc.LotNo,
					Quantity:  alloc.Quantity,
					StockTxID: record.ID,
				}).Error; err != nil {
					return "", fmt.Errorf("写入分配记录失败: %w", err)
				}
			}

			item.ExecutedQty = &qty
			if err := tx.Model(item).Update("executed_qty", qty).Error; err != nil {
				return "", err
			}
		}

		now := time.Now()
		return "", tx.Model(mr).Update("issued_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// Complete 完成领料
func (s *MaterialRequestService) Complete(ctx context.Context, tenantID, id string) (*entity.MaterialRequest, error) {
	mr, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, materialRequestTransitions, mr, ActionComplete, func(tx *gorm.DB) (string, error) {
		now := time.Now()
		return "", tx.Model(mr).Update("completed_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// Cancel 取消。只允许在出库前取消，已出库的单据不可取消。
func (s *MaterialRequestService) Cancel(ctx context.Context, tenantID, id, reason string) (*entity.MaterialRequest, error) {
	mr, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, materialRequestTransitions, mr, ActionCancel, func(tx *gorm.DB) (string, error) {
		return "", tx.Model(mr).Update("cancel_reason", reason).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}
