package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/wms/service"
	"github.com/gin-gonic/gin"
)

// InventoryHandler 库存查询和预留处理器
type InventoryHandler struct {
	warehouse   *service.WarehouseService
	reservation *service.ReservationService
}

func NewInventoryHandler(warehouse *service.WarehouseService, reservation *service.ReservationService) *InventoryHandler {
	return &InventoryHandler{warehouse: warehouse, reservation: reservation}
}

// List 查询库存余额
func (h *InventoryHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	list, total, err := h.warehouse.ListInventory(c.Request.Context(), GetTenantID(c), service.InventoryListParams{
		WarehouseID: c.Query("warehouse_id"),
		ProductID:   c.Query("product_id"),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{
		Items:      list,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

// ListTransactions 查询库存流水
func (h *InventoryHandler) ListTransactions(c *gin.Context) {
	page, pageSize := GetPagination(c)
	list, total, err := h.warehouse.ListTransactions(c.Request.Context(), GetTenantID(c), service.TransactionListParams{
		WarehouseID: c.Query("warehouse_id"),
		ProductID:   c.Query("product_id"),
		Type:        c.Query("type"),
		ReferenceID: c.Query("reference_id"),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{
		Items:      list,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

// ExportTransactions 导出库存流水为xlsx
func (h *InventoryHandler) ExportTransactions(c *gin.Context) {
	f, filename, err := h.warehouse.ExportTransactions(c.Request.Context(), GetTenantID(c), service.TransactionListParams{
		WarehouseID: c.Query("warehouse_id"),
		ProductID:   c.Query("product_id"),
		Type:        c.Query("type"),
		ReferenceID: c.Query("reference_id"),
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write export: "+err.Error())
	}
}

// ListLots 查询批次
func (h *InventoryHandler) ListLots(c *gin.Context) {
	page, pageSize := GetPagination(c)
	list, total, err := h.warehouse.ListLots(c.Request.Context(), GetTenantID(c), service.LotListParams{
		WarehouseID:   c.Query("warehouse_id"),
		ProductID:     c.Query("product_id"),
		QualityStatus: c.Query("quality_status"),
		ActiveOnly:    c.Query("active") == "true",
		Page:          page,
		PageSize:      pageSize,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{
		Items:      list,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

type reservationRequest struct {
	WarehouseID string  `json:"warehouse_id" binding:"required"`
	ProductID   string  `json:"product_id" binding:"required"`
	LotID       *string `json:"lot_id"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
}

// Reserve 预留库存
func (h *InventoryHandler) Reserve(c *gin.Context) {
	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	err := h.reservation.Reserve(c.Request.Context(), GetTenantID(c), req.WarehouseID, req.ProductID, req.LotID, req.Quantity)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, gin.H{"reserved": req.Quantity})
}

// Release 释放预留
func (h *InventoryHandler) Release(c *gin.Context) {
	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	err := h.reservation.Release(c.Request.Context(), GetTenantID(c), req.WarehouseID, req.ProductID, req.LotID, req.Quantity)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, gin.H{"released": req.Quantity})
}
