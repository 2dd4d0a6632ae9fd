package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/middleware"
	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/bitfantasy/nimo-mes/internal/wms/handler"
	"github.com/bitfantasy/nimo-mes/internal/wms/service"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-mes service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := entity.AutoMigrate(db); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化依赖
	services := service.NewServices(db, rdb, cfg)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1/mes")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 仓库
		warehouses := v1.Group("/warehouses")
		{
			warehouses.GET("", h.Warehouse.List)
			warehouses.POST("", h.Warehouse.Create)
			warehouses.GET("/:id", h.Warehouse.Get)
		}

		// 库存
		inventory := v1.Group("/inventory")
		{
			inventory.GET("", h.Inventory.List)
			inventory.GET("/transactions", h.Inventory.ListTransactions)
			inventory.GET("/transactions/export", h.Inventory.ExportTransactions)
			inventory.POST("/reserve", h.Inventory.Reserve)
			inventory.POST("/release", h.Inventory.Release)
		}

		// 批次
		v1.GET("/lots", h.Inventory.ListLots)

		// 领料单
		mrs := v1.Group("/material-requests")
		{
			mrs.GET("", h.MaterialRequest.List)
			mrs.POST("", h.MaterialRequest.Create)
			mrs.GET("/:id", h.MaterialRequest.Get)
			mrs.POST("/:id/approve", h.MaterialRequest.Approve)
			mrs.POST("/:id/reject", h.MaterialRequest.Reject)
			mrs.POST("/:id/issue", h.MaterialRequest.Issue)
			mrs.POST("/:id/complete", h.MaterialRequest.Complete)
			mrs.POST("/:id/cancel", h.MaterialRequest.Cancel)
		}

		// 退料单
		returns := v1.Group("/returns")
		{
			returns.GET("", h.Return.List)
			returns.POST("", h.Return.Create)
			returns.GET("/:id", h.Return.Get)
			returns.POST("/:id/approve", h.Return.Approve)
			returns.POST("/:id/reject", h.Return.Reject)
			returns.POST("/:id/receive", h.Return.Receive)
			returns.POST("/:id/complete", h.Return.Complete)
			returns.POST("/:id/cancel", h.Return.Cancel)
			returns.POST("/items/:itemId/resolve", h.Quality.ResolveReturnItem)
			returns.POST("/items/:itemId/report", h.Quality.UploadReturnReport)
		}

		// 报废单
		disposals := v1.Group("/disposals")
		{
			disposals.GET("", h.Disposal.List)
			disposals.POST("", h.Disposal.Create)
			disposals.GET("/:id", h.Disposal.Get)
			disposals.POST("/:id/approve", h.Disposal.Approve)
			disposals.POST("/:id/reject", h.Disposal.Reject)
			disposals.POST("/:id/process", h.Disposal.Process)
			disposals.POST("/:id/complete", h.Disposal.Complete)
			disposals.POST("/:id/cancel", h.Disposal.Cancel)
		}

		// 发货单
		shipments := v1.Group("/shipments")
		{
			shipments.GET("", h.Shipment.List)
			shipments.POST("", h.Shipment.Create)
			shipments.GET("/:id", h.Shipment.Get)
			shipments.POST("/:id/process", h.Shipment.Process)
			shipments.POST("/:id/confirm", h.Shipment.Confirm)
			shipments.POST("/:id/cancel", h.Shipment.Cancel)
			shipments.POST("/items/:itemId/resolve", h.Quality.ResolveShipmentItem)
			shipments.POST("/items/:itemId/report", h.Quality.UploadShipmentReport)
		}

		// 质量标准
		standards := v1.Group("/quality-standards")
		{
			standards.GET("", h.Quality.ListStandards)
			standards.POST("", h.Quality.CreateStandard)
		}

		// 检验报告下载
		v1.GET("/inspection-reports/download", h.Quality.DownloadReport)
	}
}
