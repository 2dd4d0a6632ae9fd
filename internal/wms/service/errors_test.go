package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/wms/testutil"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestRunInTxRetriesConcurrencyErrors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	// 死锁首次失败，重试后成功
	attempts := 0
	err := runInTx(ctx, db, func(tx *gorm.DB) error {
		attempts++
		if attempts == 1 {
			return &pgconn.PgError{Code: "40P01"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success after retry, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}

	// 串行化失败耗尽重试后归一为并发冲突错误
	attempts = 0
	err = runInTx(ctx, db, func(tx *gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "40001"}
	})
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}
	if attempts != maxTxRetries {
		t.Errorf("Expected %d attempts, got %d", maxTxRetries, attempts)
	}

	// 业务错误不重试，原样上抛
	attempts = 0
	wantErr := errors.New("unit exploded")
	err = runInTx(ctx, db, func(tx *gorm.DB) error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected passthrough error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected single attempt, got %d", attempts)
	}
}
