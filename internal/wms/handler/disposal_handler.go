package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/wms/service"
	"github.com/gin-gonic/gin"
)

// DisposalHandler 报废单处理器
type DisposalHandler struct {
	svc *service.DisposalService
}

func NewDisposalHandler(svc *service.DisposalService) *DisposalHandler {
	return &DisposalHandler{svc: svc}
}

// List 获取报废单列表
func (h *DisposalHandler) List(c *gin.Context) {
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

// Get 获取报废单详情
func (h *DisposalHandler) Get(c *gin.Context) {
	dsp, err := h.svc.Get(c.Request.Context(), GetTenantID(c), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, dsp)
}

// Create 创建报废单
func (h *DisposalHandler) Create(c *gin.Context) {
	var req service.CreateDisposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	dsp, err := h.svc.Create(c.Request.Context(), GetTenantID(c), req, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, dsp)
}

// Approve 审批通过
func (h *DisposalHandler) Approve(c *gin.Context) {
	dsp, err := h.svc.Approve(c.Request.Context(), GetTenantID(c), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, dsp)
}

// Reject 驳回
func (h *DisposalHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	dsp, err := h.svc.Reject(c.Request.Context(), GetTenantID(c), c.Param("id"), GetUserID(c), req.Reason)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, dsp)
}

// Process 报废处理
func (h *DisposalHandler) Process(c *gin.Context) {
	dsp, err := h.svc.Process(c.Request.Context(), GetTenantID(c), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, dsp)
}

// Complete 完成报废
func (h *DisposalHandler) Complete(c *gin.Context) {
	var req service.CompleteDisposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	dsp, err := h.svc.Complete(c.Request.Context(), GetTenantID(c), c.Param("id"), req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, dsp)
}

// Cancel 取消
func (h *DisposalHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	dsp, err := h.svc.Cancel(c.Request.Context(), GetTenantID(c), c.Param("id"), req.Reason)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, dsp)
}
