package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/wms/testutil"
	"gorm.io/gorm"
)

func TestSequenceNextIsMonotonicAndUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seq := NewSequenceService(nil) // 无 redis，走数据库计数器
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		var no string
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			no, err = seq.Next(ctx, tx, testutil.TenantID, "MR")
			return err
		})
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if seen[no] {
			t.Fatalf("Duplicate number issued: %s", no)
		}
		seen[no] = true
	}

	day := time.Now().Format("20060102")
	want := fmt.Sprintf("MR-%s-0010", day)
	if !seen[want] {
		t.Errorf("Expected %s to be issued, got %v", want, seen)
	}
}

func TestSequenceConcurrentNextYieldsUniqueNumbers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seq := NewSequenceService(nil)
	ctx := context.Background()

	const workers = 8
	results := make(chan string, workers)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var no string
			err := runInTx(ctx, db, func(tx *gorm.DB) error {
				var err error
				no, err = seq.Next(ctx, tx, testutil.TenantID, "TX")
				return err
			})
			if err != nil {
				errs <- err
				return
			}
			results <- no
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("Next failed: %v", err)
	}
	seen := make(map[string]bool)
	for no := range results {
		if seen[no] {
			t.Fatalf("Duplicate number issued under contention: %s", no)
		}
		seen[no] = true
	}
	// 并发发号不跳号：正好覆盖 0001..000N
	day := time.Now().Format("20060102")
	for i := 1; i <= workers; i++ {
		want := fmt.Sprintf("TX-%s-%04d", day, i)
		if !seen[want] {
			t.Errorf("Expected %s to be issued, got %v", want, seen)
		}
	}
}

func TestSequenceIsolatedPerKindAndTenant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seq := NewSequenceService(nil)
	ctx := context.Background()

	var first, otherKind, otherTenant string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		if first, err = seq.Next(ctx, tx, testutil.TenantID, "SHP"); err != nil {
			return err
		}
		if otherKind, err = seq.Next(ctx, tx, testutil.TenantID, "DSP"); err != nil {
			return err
		}
		otherTenant, err = seq.Next(ctx, tx, "tenant-other", "SHP")
		return err
	})
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	day := time.Now().Format("20060102")
	if first != fmt.Sprintf("SHP-%s-0001", day) {
		t.Errorf("Unexpected first number: %s", first)
	}
	if otherKind != fmt.Sprintf("DSP-%s-0001", day) {
		t.Errorf("Expected independent counter per kind, got %s", otherKind)
	}
	if otherTenant != fmt.Sprintf("SHP-%s-0001", day) {
		t.Errorf("Expected independent counter per tenant, got %s", otherTenant)
	}
}
