package memory

import (
	"context"
	"sync"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/storage"
)

// HistoryStore is an in-memory implementation of storage.HistoryStore.
type HistoryStore struct {
	mu   sync.RWMutex
	data map[domain.Account]*domain.History
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		data: make(map[domain.Account]*domain.History),
	}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// Get returns a copy of the account's history, or a fresh zero-valued
// history for accounts never written.
func (s *HistoryStore) Get(_ context.Context, account domain.Account) (*domain.History, error) {
	if account == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[account]
	if !ok {
		return &domain.History{}, nil
	}
	return h.Clone(), nil
}

// Append persists one ring write.
func (s *HistoryStore) Append(_ context.Context, account domain.Account, slotIndex int, snap domain.Snapshot, cursor, writes int) error {
	if account == "" {
		return storage.ErrInvalidInput
	}
	if slotIndex < 0 || slotIndex >= domain.HistoryCapacity {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.data[account]
	if !ok {
		h = &domain.History{}
		s.data[account] = h
	}
	h.Slots[slotIndex] = snap.Clone()
	h.Cursor = cursor
	h.Writes = writes
	return nil
}
