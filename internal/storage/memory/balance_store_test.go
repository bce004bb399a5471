package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"twab-ledger/internal/storage"
)

func TestBalanceStore_GetUnknownAccount(t *testing.T) {
	store := NewBalanceStore()

	got, err := store.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 0 {
		t.Errorf("unknown account balance: got %d, want 0", got)
	}
}

func TestBalanceStore_SetAndGet(t *testing.T) {
	store := NewBalanceStore()
	ctx := context.Background()

	if err := store.Set(ctx, "alice", 100); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "alice", 70); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	got, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 70 {
		t.Errorf("balance: got %d, want 70", got)
	}
}

func TestBalanceStore_InvalidInput(t *testing.T) {
	store := NewBalanceStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Get empty account: expected ErrInvalidInput, got %v", err)
	}
	if err := store.Set(ctx, "", 1); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Set empty account: expected ErrInvalidInput, got %v", err)
	}
}

func TestBalanceStore_ConcurrentAccess(t *testing.T) {
	store := NewBalanceStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Set(ctx, "alice", uint64(i))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = store.Get(ctx, "alice")
		}()
	}
	wg.Wait()
}
