package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// WarehouseService 仓库主数据和库存查询面
type WarehouseService struct {
	db *gorm.DB
}

func NewWarehouseService(db *gorm.DB) *WarehouseService {
	return &WarehouseService{db: db}
}

type CreateWarehouseRequest struct {
	Code    string `json:"code" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Type    string `json:"type"`
	Address string `json:"address"`
	Manager string `json:"manager"`
	Notes   string `json:"notes"`
}

// CreateWarehouse 创建仓库
func (s *WarehouseService) CreateWarehouse(ctx context.Context, tenantID string, req CreateWarehouseRequest) (*entity.Warehouse, error) {
	whType := req.Type
	if whType == "" {
		whType = entity.WarehouseTypeNormal
	}
	if whType != entity.WarehouseTypeNormal && whType != entity.WarehouseTypeQuarantine {
		return nil, fmt.Errorf("%w: 无效仓库类型 %s", ErrValidation, whType)
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&entity.Warehouse{}).
		Where("tenant_id = ? AND code = ? AND deleted_at IS NULL", tenantID, req.Code).
		Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, fmt.Errorf("%w: 仓库编码 %s", ErrDuplicateDocumentNumber, req.Code)
	}

	wh := &entity.Warehouse{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Code:     req.Code,
		Name:     req.Name,
		Type:     whType,
		Address:  req.Address,
		Manager:  req.Manager,
		Status:   entity.WarehouseStatusActive,
		Notes:    req.Notes,
	}
	if err := s.db.WithContext(ctx).Create(wh).Error; err != nil {
		return nil, fmt.Errorf("创建仓库失败: %w", err)
	}
	return wh, nil
}

// ListWarehouses 查询仓库列表
func (s *WarehouseService) ListWarehouses(ctx context.Context, tenantID string) ([]entity.Warehouse, error) {
	var list []entity.Warehouse
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID).
		Order("code ASC").Find(&list).Error
	return list, err
}

// GetWarehouse 查询仓库
func (s *WarehouseService) GetWarehouse(ctx context.Context, tenantID, id string) (*entity.Warehouse, error) {
	var wh entity.Warehouse
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND deleted_at IS NULL", id, tenantID).
		First(&wh).Error
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: 仓库 %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &wh, nil
}

// InventoryListParams 库存查询参数
type InventoryListParams struct {
	WarehouseID string
	ProductID   string
	Page        int
	PageSize    int
}

// ListInventory 查询库存余额
func (s *WarehouseService) ListInventory(ctx context.Context, tenantID string, params InventoryListParams) ([]entity.Inventory, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 200 {
		params.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&entity.Inventory{}).Where("tenant_id = ?", tenantID)
	if params.WarehouseID != "" {
		query = query.Where("warehouse_id = ?", params.WarehouseID)
	}
	if params.ProductID != "" {
		query = query.Where("product_id = ?", params.ProductID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.Inventory
	err := query.Preload("Lot").Preload("Warehouse").
		Order("warehouse_id ASC, product_id ASC").
		Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize).
		Find(&list).Error
	return list, total, err
}

// TransactionListParams 流水查询参数
type TransactionListParams struct {
	WarehouseID string
	ProductID   string
	Type        string
	ReferenceID string
	Page        int
	PageSize    int
}

// ListTransactions 查询库存流水，按时间倒序
func (s *WarehouseService) ListTransactions(ctx context.Context, tenantID string, params TransactionListParams) ([]entity.StockTransaction, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 200 {
		params.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&entity.StockTransaction{}).Where("tenant_id = ?", tenantID)
	if params.WarehouseID != "" {
		query = query.Where("warehouse_id = ?", params.WarehouseID)
	}
	if params.ProductID != "" {
		query = query.Where("product_id = ?", params.ProductID)
	}
	if params.Type != "" {
		query = query.Where("type = ?", params.Type)
	}
	if params.ReferenceID != "" {
		query = query.Where("reference_id = ?", params.ReferenceID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.StockTransaction
	err := query.Order("created_at DESC, tx_no DESC").
		Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize).
		Find(&list).Error
	return list, total, err
}

// LotListParams 批次查询参数
type LotListParams struct {
	WarehouseID   string
	ProductID     string
	QualityStatus string
	ActiveOnly    bool
	Page          int
	PageSize      int
}

// ListLots 查询批次，按收货时间升序（FIFO 顺序）
func (s *WarehouseService) ListLots(ctx context.Context, tenantID string, params LotListParams) ([]entity.Lot, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 200 {
		params.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&entity.Lot{}).
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID)
	if params.WarehouseID != "" {
		query = query.Where("warehouse_id = ?", params.WarehouseID)
	}
	if params.ProductID != "" {
		query = query.Where("product_id = ?", params.ProductID)
	}
	if params.QualityStatus != "" {
		query = query.Where("quality_status = ?", params.QualityStatus)
	}
	if params.ActiveOnly {
		query = query.Where("active = true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.Lot
	err := query.Order("received_at ASC, lot_no ASC").
		Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize).
		Find(&list).Error
	return list, total, err
}

var txExportHeaders = []string{
	"流水号", "类型", "仓库", "物料", "批次号", "数量",
	"来源单据", "来源单号", "操作人", "时间", "备注",
}

// ExportTransactions 导出库存流水为xlsx
func (s *WarehouseService) ExportTransactions(ctx context.Context, tenantID string, params TransactionListParams) (*excelize.File, string, error) {
	query := s.db.WithContext(ctx).Model(&entity.StockTransaction{}).Where("tenant_id = ?", tenantID)
	if params.WarehouseID != "" {
		query = query.Where("warehouse_id = ?", params.WarehouseID)
	}
	if params.ProductID != "" {
		query = query.Where("product_id = ?", params.ProductID)
	}
	if params.Type != "" {
		query = query.Where("type = ?", params.Type)
	}
	if params.ReferenceID != "" {
		query = query.Where("reference_id = ?", params.ReferenceID)
	}

	var list []entity.StockTransaction
	if err := query.Order("created_at ASC, tx_no ASC").Limit(10000).Find(&list).Error; err != nil {
		return nil, "", fmt.Errorf("查询库存流水失败: %w", err)
	}

	f := excelize.NewFile()
	sheet := "库存流水"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range txExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, record := range list {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), record.TxNo)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), record.Type)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), record.WarehouseID)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), record.ProductID)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), record.LotNo)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), record.Quantity)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), record.ReferenceType)
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), record.ReferenceNo)
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), record.CreatedBy)
		f.SetCellValue(sheet, fmt.Sprintf("J%d", row), record.CreatedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheet, fmt.Sprintf("K%d", row), record.Notes)
	}

	colWidths := []float64{22, 14, 38, 16, 20, 10, 10, 20, 14, 20, 30}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("stock_transactions_%s.xlsx", time.Now().Format("20060102_150405"))
	return f, filename, nil
}
