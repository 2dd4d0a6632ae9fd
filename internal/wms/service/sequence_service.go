package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceService 单据/流水/批次编号发号器。
// 编号形如 {KIND}-{yyyymmdd}-{0001}，按租户+类型+日期单调递增。
// 优先走 redis INCR；redis 不可用时退化为数据库计数器行（锁行自增）。
// 不允许扫描既有编号取最大值再加一的做法，那在并发创建下会重号。
type SequenceService struct {
	rdb *redis.Client // 可为 nil
}

func NewSequenceService(rdb *redis.Client) *SequenceService {
	return &SequenceService{rdb: rdb}
}

// Next 取下一个编号。tx 仅用于数据库兜底路径。
func (s *SequenceService) Next(ctx context.Context, tx *gorm.DB, tenantID, kind string) (string, error) {
	day := time.Now().Format("20060102")

	if s.rdb != nil {
		key := fmt.Sprintf("seq:%s:%s:%s", tenantID, kind, day)
		n, err := s.rdb.Incr(ctx, key).Result()
		if err == nil {
			// 跨天后计数器失效即可，保留两天便于排查
			s.rdb.Expire(ctx, key, 48*time.Hour)
			return fmt.Sprintf("%s-%s-%04d", kind, day, n), nil
		}
		// redis 故障时落到数据库计数器
	}

	return s.nextFromDB(tx, tenantID, kind, day)
}

func (s *SequenceService) nextFromDB(tx *gorm.DB, tenantID, kind, day string) (string, error) {
	var counter entity.SequenceCounter
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND kind = ? AND day = ?", tenantID, kind, day).
		First(&counter).Error
	if err != nil {
		if !notFound(err) {
			return "", err
		}
		counter = entity.SequenceCounter{TenantID: tenantID, Kind: kind, Day: day}
		// 并发首建时靠主键冲突重试兜底
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
			return "", fmt.Errorf("创建计数器失败: %w", err)
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND kind = ? AND day = ?", tenantID, kind, day).
			First(&counter).Error; err != nil {
			return "", err
		}
	}

	counter.Value++
	if err := tx.Model(&entity.SequenceCounter{}).
		Where("tenant_id = ? AND kind = ? AND day = ?", tenantID, kind, day).
		Update("value", counter.Value).Error; err != nil {
		return "", fmt.Errorf("更新计数器失败: %w", err)
	}
	return fmt.Sprintf("%s-%s-%04d", kind, day, counter.Value), nil
}
