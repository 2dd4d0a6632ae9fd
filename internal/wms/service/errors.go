package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// 领域错误，调用方用 errors.Is 判别
var (
	ErrValidation              = errors.New("参数校验失败")
	ErrNotFound                = errors.New("记录不存在")
	ErrInvalidStateTransition  = errors.New("当前状态不允许该操作")
	ErrInsufficientInventory   = errors.New("可用库存不足")
	ErrDuplicateDocumentNumber = errors.New("单据编号重复")
	ErrConcurrentModification  = errors.New("并发冲突，请重试")
)

// isRetryableTxError 判断是否为可重试的数据库并发错误
// 40001 = serialization_failure, 40P01 = deadlock_detected
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// notFound 把 gorm.ErrRecordNotFound 归一成领域错误
func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// runInTx 在事务内执行 fn，对数据库并发错误做有限次重试，
// 重试耗尽后以 ErrConcurrentModification 上抛
func runInTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if err == nil || !isRetryableTxError(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrConcurrentModification, err)
}
