package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/wms/service"
	"github.com/gin-gonic/gin"
)

// WarehouseHandler 仓库处理器
type WarehouseHandler struct {
	svc *service.WarehouseService
}

func NewWarehouseHandler(svc *service.WarehouseService) *WarehouseHandler {
	return &WarehouseHandler{svc: svc}
}

// List 获取仓库列表
func (h *WarehouseHandler) List(c *gin.Context) {
	list, err := h.svc.ListWarehouses(c.Request.Context(), GetTenantID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, list)
}

// Get 获取仓库详情
func (h *WarehouseHandler) Get(c *gin.Context) {
	wh, err := h.svc.GetWarehouse(c.Request.Context(), GetTenantID(c), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, wh)
}

// Create 创建仓库
func (h *WarehouseHandler) Create(c *gin.Context) {
	var req service.CreateWarehouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	wh, err := h.svc.CreateWarehouse(c.Request.Context(), GetTenantID(c), req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, wh)
}
