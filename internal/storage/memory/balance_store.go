package memory

import (
	"context"
	"sync"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/storage"
)

// BalanceStore is an in-memory implementation of storage.BalanceStore.
type BalanceStore struct {
	mu   sync.RWMutex
	data map[domain.Account]uint64
}

// NewBalanceStore creates a new in-memory balance store.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{
		data: make(map[domain.Account]uint64),
	}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// Get returns the account's balance; absent accounts read as zero.
func (s *BalanceStore) Get(_ context.Context, account domain.Account) (uint64, error) {
	if account == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data[account], nil
}

// Set overwrites the account's balance.
func (s *BalanceStore) Set(_ context.Context, account domain.Account, balance uint64) error {
	if account == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[account] = balance
	return nil
}
