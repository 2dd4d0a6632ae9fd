package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/wms/service"
	"github.com/gin-gonic/gin"
)

// MaterialRequestHandler 领料单处理器
type MaterialRequestHandler struct {
	svc *service.MaterialRequestService
}

func NewMaterialRequestHandler(svc *service.MaterialRequestService) *MaterialRequestHandler {
	return &MaterialRequestHandler{svc: svc}
}

// List 获取领料单列表
func (h *MaterialRequestHandler) List(c *gin.Context) {
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

// Get 获取领料单详情
func (h *MaterialRequestHandler) Get(c *gin.Context) {
	mr, err := h.svc.Get(c.Request.Context(), GetTenantID(c), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, mr)
}

// Create 创建领料单
func (h *MaterialRequestHandler) Create(c *gin.Context) {
	var req service.CreateMaterialRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	mr, err := h.svc.Create(c.Request.Context(), GetTenantID(c), req, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, mr)
}

// Approve 审批通过
func (h *MaterialRequestHandler) Approve(c *gin.Context) {
	mr, err := h.svc.Approve(c.Request.Context(), GetTenantID(c), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, mr)
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Reject 驳回
func (h *MaterialRequestHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	mr, err := h.svc.Reject(c.Request.Context(), GetTenantID(c), c.Param("id"), GetUserID(c), req.Reason)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, mr)
}

// Issue 领料出库
func (h *MaterialRequestHandler) Issue(c *gin.Context) {
	mr, err := h.svc.Issue(c.Request.Context(), GetTenantID(c), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, mr)
}

// Complete 完成领料
func (h *MaterialRequestHandler) Complete(c *gin.Context) {
	mr, err := h.svc.Complete(c.Request.Context(), GetTenantID(c), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, mr)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel 取消
func (h *MaterialRequestHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	mr, err := h.svc.Cancel(c.Request.Context(), GetTenantID(c), c.Param("id"), req.Reason)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, mr)
}
