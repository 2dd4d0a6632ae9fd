package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/wms/service"
	"github.com/gin-gonic/gin"
)

// ShipmentHandler 发货单处理器
type ShipmentHandler struct {
	svc *service.ShipmentService
}

func NewShipmentHandler(svc *service.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{svc: svc}
}

// List 获取发货单列表
func (h *ShipmentHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	list, total, err := h.svc.List(c.Request.Context(), GetTenantID(c), service.ListParams{
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
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

// Get 获取发货单详情
func (h *ShipmentHandler) Get(c *gin.Context) {
	shp, err := h.svc.Get(c.Request.Context(), GetTenantID(c), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, shp)
}

// Create 创建发货单
func (h *ShipmentHandler) Create(c *gin.Context) {
	var req service.CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	shp, err := h.svc.Create(c.Request.Context(), GetTenantID(c), req, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, shp)
}

// Process 发货处理
func (h *ShipmentHandler) Process(c *gin.Context) {
	shp, err := h.svc.Process(c.Request.Context(), GetTenantID(c), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, shp)
}

// Confirm 确认发运
func (h *ShipmentHandler) Confirm(c *gin.Context) {
	var req service.ConfirmShipmentRequest
	_ = c.ShouldBindJSON(&req)

	shp, err := h.svc.Confirm(c.Request.Context(), GetTenantID(c), c.Param("id"), req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, shp)
}

// Cancel 取消
func (h *ShipmentHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	shp, err := h.svc.Cancel(c.Request.Context(), GetTenantID(c), c.Param("id"), GetUserID(c), req.Reason)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, shp)
}
