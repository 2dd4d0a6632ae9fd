package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/middleware"
	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_mes"
	JWTSecret  = "nimo-mes-jwt-secret-key-2024"
	TenantID   = "tenant-test"
)

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
// Tests are skipped when no database is reachable.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "nimo")
	password := getEnv("DB_PASSWORD", "nimo123")
	dbname := getEnv("DB_NAME", "nimo_mes")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// Create a unique test schema for isolation
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	// First: create schema using a temporary connection
	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Skipping: test database not reachable: %v", err)
	}
	if err := setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName)).Error; err != nil {
		t.Skipf("Skipping: cannot create test schema: %v", err)
	}
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// Second: open connection with search_path in DSN so ALL pooled connections use test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	// Cleanup on test completion
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		// Reconnect to drop the schema
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, tenantID string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"tid":   tenantID,
		"roles": roles,
		"iss":   "nimo-mes",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default admin test user
func DefaultTestToken() string {
	return GenerateTestToken("test-user-001", "Test Admin", TenantID, []string{"mes_admin"})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedWarehouse creates a warehouse for tests
func SeedWarehouse(t *testing.T, db *gorm.DB, code, whType string) *entity.Warehouse {
	t.Helper()
	wh := &entity.Warehouse{
		ID:       uuid.New().String(),
		TenantID: TenantID,
		Code:     code,
		Name:     "Warehouse " + code,
		Type:     whType,
		Status:   entity.WarehouseStatusActive,
	}
	if err := db.Create(wh).Error; err != nil {
		t.Fatalf("Failed to seed warehouse: %v", err)
	}
	return wh
}

// SeedProduct creates a product for tests
func SeedProduct(t *testing.T, db *gorm.DB, code string) *entity.Product {
	t.Helper()
	p := &entity.Product{
		ID:       "prod-" + code,
		TenantID: TenantID,
		Code:     code,
		Name:     "Product " + code,
		Unit:     "pcs",
		Status:   "ACTIVE",
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}
	return p
}

// SeedLot creates a lot plus its inventory record with the given available quantity
func SeedLot(t *testing.T, db *gorm.DB, wh *entity.Warehouse, productID, lotNo, qualityStatus string, qty float64, receivedAt time.Time) *entity.Lot {
	t.Helper()
	lot := &entity.Lot{
		ID:            uuid.New().String(),
		TenantID:      TenantID,
		LotNo:         lotNo,
		ProductID:     productID,
		WarehouseID:   wh.ID,
		InitialQty:    qty,
		CurrentQty:    qty,
		QualityStatus: qualityStatus,
		ReceivedAt:    receivedAt,
		Active:        true,
	}
	if err := db.Create(lot).Error; err != nil {
		t.Fatalf("Failed to seed lot: %v", err)
	}
	inv := &entity.Inventory{
		ID:           uuid.New().String(),
		TenantID:     TenantID,
		WarehouseID:  wh.ID,
		ProductID:    productID,
		LotID:        &lot.ID,
		AvailableQty: qty,
	}
	if err := db.Create(inv).Error; err != nil {
		t.Fatalf("Failed to seed inventory: %v", err)
	}
	return lot
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
