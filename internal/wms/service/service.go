package service

import (
	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services 仓储服务集合
type Services struct {
	Warehouse       *WarehouseService
	Sequence        *SequenceService
	Ledger          *LedgerService
	Allocation      *AllocationService
	Reservation     *ReservationService
	Quality         *QualityService
	Attachment      *AttachmentService
	MaterialRequest *MaterialRequestService
	Return          *ReturnService
	Disposal        *DisposalService
	Shipment        *ShipmentService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Services {
	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			// MinIO 不可用时降级运行，附件只记路径
			minioClient = nil
		}
	}

	engine := NewWorkflowEngine(db)
	seq := NewSequenceService(rdb)
	ledger := NewLedgerService(db, seq)
	allocator := NewAllocationService(db)
	quality := NewQualityService(db, ledger)

	return &Services{
		Warehouse:       NewWarehouseService(db),
		Sequence:        seq,
		Ledger:          ledger,
		Allocation:      allocator,
		Reservation:     NewReservationService(db, ledger),
		Quality:         quality,
		Attachment:      NewAttachmentService(db, minioClient, cfg.MinIO.Bucket),
		MaterialRequest: NewMaterialRequestService(db, engine, ledger, allocator, seq),
		Return:          NewReturnService(db, engine, ledger, quality, seq),
		Disposal:        NewDisposalService(db, engine, ledger, allocator, seq),
		Shipment:        NewShipmentService(db, engine, ledger, allocator, quality, seq),
	}
}
