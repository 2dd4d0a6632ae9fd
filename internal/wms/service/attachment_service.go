package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"
)

// AttachmentService 检验报告附件。对象存到 minio，
// 行项上只记对象路径。minio 未配置时仅记文件名，不阻塞检验流程。
type AttachmentService struct {
	db          *gorm.DB
	minioClient *minio.Client
	bucketName  string
}

func NewAttachmentService(db *gorm.DB, minioClient *minio.Client, bucketName string) *AttachmentService {
	return &AttachmentService{db: db, minioClient: minioClient, bucketName: bucketName}
}

// UploadReturnReport 上传退料行项的检验报告
func (s *AttachmentService) UploadReturnReport(ctx context.Context, tenantID, itemID, fileName string, reader io.Reader, fileSize int64, contentType string) (*entity.ReturnItem, error) {
	var item entity.ReturnItem
	err := s.db.WithContext(ctx).
		Joins("JOIN mes_return_orders ON mes_return_orders.id = mes_return_items.return_id").
		Where("mes_return_items.id = ? AND mes_return_orders.tenant_id = ?", itemID, tenantID).
		First(&item).Error
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: 退料行项 %s", ErrNotFound, itemID)
		}
		return nil, err
	}

	objectName, err := s.putObject(ctx, tenantID, itemID, fileName, reader, fileSize, contentType)
	if err != nil {
		return nil, err
	}

	item.ReportURL = objectName
	if err := s.db.WithContext(ctx).Model(&item).Update("report_url", objectName).Error; err != nil {
		return nil, fmt.Errorf("更新检验报告失败: %w", err)
	}
	return &item, nil
}

// UploadShipmentReport 上传发货行项的检验报告
func (s *AttachmentService) UploadShipmentReport(ctx context.Context, tenantID, itemID, fileName string, reader io.Reader, fileSize int64, contentType string) (*entity.ShipmentItem, error) {
	var item entity.ShipmentItem
	err := s.db.WithContext(ctx).
		Joins("JOIN mes_shipment_orders ON mes_shipment_orders.id = mes_shipment_items.shipment_id").
		Where("mes_shipment_items.id = ? AND mes_shipment_orders.tenant_id = ?", itemID, tenantID).
		First(&item).Error
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: 发货行项 %s", ErrNotFound, itemID)
		}
		return nil, err
	}

	objectName, err := s.putObject(ctx, tenantID, itemID, fileName, reader, fileSize, contentType)
	if err != nil {
		return nil, err
	}

	item.ReportURL = objectName
	if err := s.db.WithContext(ctx).Model(&item).Update("report_url", objectName).Error; err != nil {
		return nil, fmt.Errorf("更新检验报告失败: %w", err)
	}
	return &item, nil
}

// ReportDownloadURL 生成检验报告的临时下载链接
func (s *AttachmentService) ReportDownloadURL(ctx context.Context, objectName string) (string, error) {
	if s.minioClient == nil {
		return "", fmt.Errorf("%w: 对象存储未配置", ErrNotFound)
	}
	u, err := s.minioClient.PresignedGetObject(ctx, s.bucketName, objectName, 15*time.Minute, nil)
	if err != nil {
		return "", fmt.Errorf("生成下载链接失败: %w", err)
	}
	return u.String(), nil
}

func (s *AttachmentService) putObject(ctx context.Context, tenantID, itemID, fileName string, reader io.Reader, fileSize int64, contentType string) (string, error) {
	objectName := path.Join("inspection-reports", tenantID, itemID, fmt.Sprintf("%d_%s", time.Now().Unix(), fileName))
	if s.minioClient != nil {
		_, err := s.minioClient.PutObject(ctx, s.bucketName, objectName, reader, fileSize, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return "", fmt.Errorf("上传检验报告失败: %w", err)
		}
	}
	return objectName, nil
}
