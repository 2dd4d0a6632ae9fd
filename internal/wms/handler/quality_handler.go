package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/wms/service"
	"github.com/gin-gonic/gin"
)

// QualityHandler 质量标准和检验处理器
type QualityHandler struct {
	svc        *service.QualityService
	attachment *service.AttachmentService
}

func NewQualityHandler(svc *service.QualityService, attachment *service.AttachmentService) *QualityHandler {
	return &QualityHandler{svc: svc, attachment: attachment}
}

// CreateStandard 创建质量标准
func (h *QualityHandler) CreateStandard(c *gin.Context) {
	var req service.CreateStandardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	std, err := h.svc.CreateStandard(c.Request.Context(), GetTenantID(c), req, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, std)
}

// ListStandards 查询质量标准
func (h *QualityHandler) ListStandards(c *gin.Context) {
	list, err := h.svc.ListStandards(c.Request.Context(), GetTenantID(c), c.Query("product_id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, list)
}

type resolveRequest struct {
	Result string `json:"result" binding:"required"`
}

// ResolveReturnItem 记录退料行项检验结论
func (h *QualityHandler) ResolveReturnItem(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	item, err := h.svc.ResolveReturnItem(c.Request.Context(), GetTenantID(c), c.Param("itemId"), req.Result, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, item)
}

// ResolveShipmentItem 记录发货行项检验结论
func (h *QualityHandler) ResolveShipmentItem(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	item, err := h.svc.ResolveShipmentItem(c.Request.Context(), GetTenantID(c), c.Param("itemId"), req.Result, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, item)
}

// UploadReturnReport 上传退料行项检验报告
func (h *QualityHandler) UploadReturnReport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "File is required")
		return
	}
	defer file.Close()

	item, err := h.attachment.UploadReturnReport(c.Request.Context(), GetTenantID(c), c.Param("itemId"),
		header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, item)
}

// UploadShipmentReport 上传发货行项检验报告
func (h *QualityHandler) UploadShipmentReport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "File is required")
		return
	}
	defer file.Close()

	item, err := h.attachment.UploadShipmentReport(c.Request.Context(), GetTenantID(c), c.Param("itemId"),
		header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, item)
}

// DownloadReport 生成检验报告下载链接
func (h *QualityHandler) DownloadReport(c *gin.Context) {
	objectName := c.Query("object")
	if objectName == "" {
		BadRequest(c, "object is required")
		return
	}

	url, err := h.attachment.ReportDownloadURL(c.Request.Context(), objectName)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, gin.H{"url": url})
}
