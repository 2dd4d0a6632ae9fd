package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/wms/service"
	"github.com/gin-gonic/gin"
)

// ReturnHandler 退料单处理器
type ReturnHandler struct {
	svc *service.ReturnService
}

func NewReturnHandler(svc *service.ReturnService) *ReturnHandler {
	return &ReturnHandler{svc: svc}
}

// List 获取退料单列表
func (h *ReturnHandler) List(c *gin.Context) {
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

// Get 获取退料单详情
func (h *ReturnHandler) Get(c *gin.Context) {
	ret, err := h.svc.Get(c.Request.Context(), GetTenantID(c), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ret)
}

// Create 创建退料单
func (h *ReturnHandler) Create(c *gin.Context) {
	var req service.CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ret, err := h.svc.Create(c.Request.Context(), GetTenantID(c), req, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, ret)
}

// Approve 审批通过
func (h *ReturnHandler) Approve(c *gin.Context) {
	ret, err := h.svc.Approve(c.Request.Context(), GetTenantID(c), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ret)
}

// Reject 驳回
func (h *ReturnHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ret, err := h.svc.Reject(c.Request.Context(), GetTenantID(c), c.Param("id"), GetUserID(c), req.Reason)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ret)
}

// Receive 收货
func (h *ReturnHandler) Receive(c *gin.Context) {
	ret, err := h.svc.Receive(c.Request.Context(), GetTenantID(c), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ret)
}

// Complete 完成退料
func (h *ReturnHandler) Complete(c *gin.Context) {
	ret, err := h.svc.Complete(c.Request.Context(), GetTenantID(c), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ret)
}

// Cancel 取消
func (h *ReturnHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	ret, err := h.svc.Cancel(c.Request.Context(), GetTenantID(c), c.Param("id"), req.Reason)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ret)
}
