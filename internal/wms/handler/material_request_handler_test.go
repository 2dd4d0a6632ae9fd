package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/bitfantasy/nimo-mes/internal/wms/service"
	"github.com/bitfantasy/nimo-mes/internal/wms/testutil"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func setupMaterialRequestRoutes(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := service.NewServices(db, nil, &config.Config{})
	h := NewHandlers(svc)

	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api/v1/mes")
	mrs := api.Group("/material-requests")
	mrs.GET("", h.MaterialRequest.List)
	mrs.POST("", h.MaterialRequest.Create)
	mrs.GET("/:id", h.MaterialRequest.Get)
	mrs.POST("/:id/approve", h.MaterialRequest.Approve)
	mrs.POST("/:id/reject", h.MaterialRequest.Reject)
	mrs.POST("/:id/issue", h.MaterialRequest.Issue)
	mrs.POST("/:id/complete", h.MaterialRequest.Complete)
	mrs.POST("/:id/cancel", h.MaterialRequest.Cancel)
	return r, db
}

func TestMaterialRequestAPIRequiresAuth(t *testing.T) {
	r, _ := setupMaterialRequestRoutes(t)

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/mes/material-requests", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
}

func TestMaterialRequestAPIFlow(t *testing.T) {
	r, db := setupMaterialRequestRoutes(t)
	token := testutil.DefaultTestToken()

	wh := testutil.SeedWarehouse(t, db, "WH-A", entity.WarehouseTypeNormal)
	product := testutil.SeedProduct(t, db, "P-001")
	testutil.SeedLot(t, db, wh, product.ID, "LOT-0001", entity.LotQualityPassed, 100, time.Now())

	// 创建
	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/mes/material-requests", map[string]interface{}{
		"warehouse_id": wh.ID,
		"purpose":      "line 1",
		"items": []map[string]interface{}{
			{"product_id": product.ID, "quantity": 30},
		},
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	id := data["id"].(string)
	if data["status"] != entity.MRStatusPending {
		t.Errorf("Expected PENDING, got %v", data["status"])
	}

	// 审批
	w = testutil.DoRequest(r, http.MethodPost, fmt.Sprintf("/api/v1/mes/material-requests/%s/approve", id), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Approve expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// 重复审批返回状态冲突
	w = testutil.DoRequest(r, http.MethodPost, fmt.Sprintf("/api/v1/mes/material-requests/%s/approve", id), nil, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Double approve expected 409, got %d", w.Code)
	}

	// 出库
	w = testutil.DoRequest(r, http.MethodPost, fmt.Sprintf("/api/v1/mes/material-requests/%s/issue", id), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Issue expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	data = resp["data"].(map[string]interface{})
	if data["status"] != entity.MRStatusIssued {
		t.Errorf("Expected ISSUED, got %v", data["status"])
	}

	// 详情含分配记录
	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/mes/material-requests/"+id, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Get expected 200, got %d", w.Code)
	}
	resp = testutil.ParseResponse(w)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	allocations := items[0].(map[string]interface{})["allocations"].([]interface{})
	if len(allocations) != 1 {
		t.Errorf("Expected 1 allocation, got %d", len(allocations))
	}
}

func TestMaterialRequestAPIValidation(t *testing.T) {
	r, _ := setupMaterialRequestRoutes(t)
	token := testutil.DefaultTestToken()

	// 缺少行项
	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/mes/material-requests", map[string]interface{}{
		"warehouse_id": "some-warehouse",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing items, got %d", w.Code)
	}

	// 不存在的单据
	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/mes/material-requests/00000000-0000-0000-0000-000000000000", nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown id, got %d", w.Code)
	}
}
