package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShipmentService 发货单。发货处理时 FIFO 分配并扣减库存，
// 有出货质量标准的产品行项需先拿到检验结论才能确认发运。
type ShipmentService struct {
	db        *gorm.DB
	engine    *WorkflowEngine
	ledger    *LedgerService
	allocator *AllocationService
	quality   *QualityService
	seq       *SequenceService
}

func NewShipmentService(db *gorm.DB, engine *WorkflowEngine, ledger *LedgerService, allocator *AllocationService, quality *QualityService, seq *SequenceService) *ShipmentService {
	return &ShipmentService{db: db, engine: engine, ledger: ledger, allocator: allocator, quality: quality, seq: seq}
}

type CreateShipmentRequest struct {
	WarehouseID  string               `json:"warehouse_id" binding:"required"`
	SalesOrderNo string               `json:"sales_order_no"`
	Notes        string               `json:"notes"`
	Items        []CreateShipmentItem `json:"items" binding:"required,min=1"`
}

type CreateShipmentItem struct {
	ProductID   string  `json:"product_id" binding:"required"`
	ProductCode string  `json:"product_code"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
}

// Create 创建发货单
func (s *ShipmentService) Create(ctx context.Context, tenantID string, req CreateShipmentRequest, userID string) (*entity.ShipmentOrder, error) {
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: 发货数量必须为正数", ErrValidation)
		}
	}

	var shp *entity.ShipmentOrder
	err := runInTx(ctx, s.db, func(tx *gorm.DB) error {
		var wh entity.Warehouse
		if err := tx.Where("id = ? AND tenant_id = ? AND deleted_at IS NULL", req.WarehouseID, tenantID).
			First(&wh).Error; err != nil {
			if notFound(err) {
				return fmt.Errorf("%w: 仓库 %s", ErrNotFound, req.WarehouseID)
			}
			return err
		}

		docNo, err := s.seq.Next(ctx, tx, tenantID, entity.DocKindShipment)
		if err != nil {
			return fmt.Errorf("生成单据编号失败: %w", err)
		}

		shp = &entity.ShipmentOrder{
			ID:           uuid.New().String(),
			TenantID:     tenantID,
			DocNo:        docNo,
			WarehouseID:  req.WarehouseID,
			SalesOrderNo: req.SalesOrderNo,
			Status:       entity.ShipmentStatusPending,
			RequestedBy:  userID,
			Notes:        req.Notes,
		}
		for _, item := range req.Items {
			shp.Items = append(shp.Items, entity.ShipmentItem{
				ID:               uuid.New().String(),
				ShipmentID:       shp.ID,
				ProductID:        item.ProductID,
				ProductCode:      item.ProductCode,
				RequestedQty:     item.Quantity,
				InspectionStatus: entity.InspectionNotRequired,
			})
		}
		if err := tx.Create(shp).Error; err != nil {
			return fmt.Errorf("创建发货单失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shp, nil
}

func (s *ShipmentService) Get(ctx context.Context, tenantID, id string) (*entity.ShipmentOrder, error) {
	var shp entity.ShipmentOrder
	err := s.db.WithContext(ctx).
		Preload("Items").Preload("Items.Allocations").
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&shp).Error
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: 发货单 %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &shp, nil
}

func (s *ShipmentService) List(ctx context.Context, tenantID string, params ListParams) ([]entity.ShipmentOrder, int64, error) {
	params.normalize()
	query := s.db.WithContext(ctx).Model(&entity.ShipmentOrder{}).Where("tenant_id = ?", tenantID)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.ShipmentOrder
	err := query.Preload("Items").
		Order("created_at DESC").
		Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize).
		Find(&list).Error
	return list, total, err
}

// Process 发货处理：逐行 FIFO 分配并出库，有出货标准的行项进入待检。
// 任何一行分配不足则整单失败，单据停留在 PENDING。
func (s *ShipmentService) Process(ctx context.Context, tenantID, id, userID string) (*entity.ShipmentOrder, error) {
	shp, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, shipmentTransitions, shp, ActionExecute, func(tx *gorm.DB) (string, error) {
		var items []entity.ShipmentItem
		if err := tx.Where("shipment_id = ?", shp.ID).Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
			return "", err
		}

		for i := range items {
			item := &items[i]
			qty := item.RequestedQty
			if qty <= 0 {
				continue
			}

			allocations, err := s.allocator.Allocate(ctx, tx, tenantID, shp.WarehouseID, item.ProductID, qty, nil)
			if err != nil {
				return "", fmt.Errorf("行项 %s 分配失败: %w", item.ProductID, err)
			}

			for _, alloc := range allocations {
				record, err := s.ledger.Apply(ctx, tx, ApplyInput{
					TenantID:      tenantID,
					WarehouseID:   shp.WarehouseID,
					ProductID:     item.ProductID,
					Type:          entity.TxTypeShippingOut,
					Quantity:      alloc.Quantity,
					LotID:         alloc.LotID,
					ReferenceType: entity.DocKindShipment,
					ReferenceID:   shp.ID,
					ReferenceNo:   shp.DocNo,
					ActorID:       userID,
				})
				if err != nil {
					return "", err
				}
				if err := tx.Create(&entity.ItemAllocation{
					ID:        uuid.New().String(),
					ItemID:    item.ID,
					DocKind:   entity.DocKindShipment,
					LotID:     alloc.LotID,
					LotNo:     alloc.LotNo,
					Quantity:  alloc.Quantity,
					StockTxID: record.ID,
				}).Error; err != nil {
					return "", fmt.Errorf("写入分配记录失败: %w", err)
				}
			}

			inspect, err := s.quality.RequiresShipmentInspection(ctx, tenantID, item.ProductID)
			if err != nil {
				return "", err
			}
			status := entity.InspectionNotRequired
			if inspect {
				status = entity.InspectionPending
			}
			if err := tx.Model(item).Updates(map[string]interface{}{
				"executed_qty": qty, "inspection_status": status,
			}).Error; err != nil {
				return "", err
			}
		}

		now := time.Now()
		return "", tx.Model(shp).Update("processed_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

type ConfirmShipmentRequest struct {
	TrackingNo string `json:"tracking_no"`
}

// Confirm 确认发运。所有待检行项必须已有结论，且不存在不合格行项。
func (s *ShipmentService) Confirm(ctx context.Context, tenantID, id string, req ConfirmShipmentRequest) (*entity.ShipmentOrder, error) {
	shp, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, shipmentTransitions, shp, ActionComplete, func(tx *gorm.DB) (string, error) {
		var pending, failed int64
		if err := tx.Model(&entity.ShipmentItem{}).
			Where("shipment_id = ? AND inspection_status = ?", shp.ID, entity.InspectionPending).
			Count(&pending).Error; err != nil {
			return "", err
		}
		if pending > 0 {
			return "", fmt.Errorf("%w: 还有 %d 个行项等待检验结论", ErrInvalidStateTransition, pending)
		}
		if err := tx.Model(&entity.ShipmentItem{}).
			Where("shipment_id = ? AND inspection_status = ?", shp.ID, entity.InspectionFailed).
			Count(&failed).Error; err != nil {
			return "", err
		}
		if failed > 0 {
			return "", fmt.Errorf("%w: 存在 %d 个检验不合格行项，发货单无法确认", ErrInvalidStateTransition, failed)
		}

		now := time.Now()
		return "", tx.Model(shp).Updates(map[string]interface{}{
			"tracking_no": req.TrackingNo, "shipped_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// Cancel 取消。处理中的发货单取消时逐笔冲销已产生的出库流水，
// 库存和批次余量回到处理前的状态。检验不合格的行项货已转入隔离仓，
// 其出库流水不再冲销。待检行项随冲销一并作废，
// 否则事后补录不合格结论会凭空铸造隔离库存。
func (s *ShipmentService) Cancel(ctx context.Context, tenantID, id, userID, reason string) (*entity.ShipmentOrder, error) {
	shp, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Transition(ctx, shipmentTransitions, shp, ActionCancel, func(tx *gorm.DB) (string, error) {
		var items []entity.ShipmentItem
		if err := tx.Where("shipment_id = ?", shp.ID).Find(&items).Error; err != nil {
			return "", err
		}

		for i := range items {
			item := &items[i]
			if item.InspectionStatus == entity.InspectionFailed {
				continue
			}
			var allocations []entity.ItemAllocation
			if err := tx.Where("item_id = ?", item.ID).Find(&allocations).Error; err != nil {
				return "", err
			}
			for _, alloc := range allocations {
				if _, err := s.ledger.Reverse(ctx, tx, alloc.StockTxID, userID,
					fmt.Sprintf("取消发货单 %s", shp.DocNo)); err != nil {
					return "", err
				}
			}
		}

		// 作废未出结论的检验：货已冲销回库，结论不再有去向
		if err := tx.Model(&entity.ShipmentItem{}).
			Where("shipment_id = ? AND inspection_status = ?", shp.ID, entity.InspectionPending).
			Update("inspection_status", entity.InspectionNotRequired).Error; err != nil {
			return "", err
		}

		return "", tx.Model(shp).Update("cancel_reason", reason).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}
