package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/nimo-mes/internal/wms/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Warehouse       *WarehouseHandler
	Inventory       *InventoryHandler
	Quality         *QualityHandler
	MaterialRequest *MaterialRequestHandler
	Return          *ReturnHandler
	Disposal        *DisposalHandler
	Shipment        *ShipmentHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Warehouse:       NewWarehouseHandler(svc.Warehouse),
		Inventory:       NewInventoryHandler(svc.Warehouse, svc.Reservation),
		Quality:         NewQualityHandler(svc.Quality, svc.Attachment),
		MaterialRequest: NewMaterialRequestHandler(svc.MaterialRequest),
		Return:          NewReturnHandler(svc.Return),
		Disposal:        NewDisposalHandler(svc.Disposal),
		Shipment:        NewShipmentHandler(svc.Shipment),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 状态冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// HandleServiceError 把领域错误映射为 HTTP 响应
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrInvalidStateTransition),
		errors.Is(err, service.ErrInsufficientInventory),
		errors.Is(err, service.ErrDuplicateDocumentNumber),
		errors.Is(err, service.ErrConcurrentModification):
		Conflict(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetTenantID 从上下文获取租户ID
func GetTenantID(c *gin.Context) string {
	tenantID, _ := c.Get("tenant_id")
	if id, ok := tenantID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
