package memory

import (
	"context"
	"sort"
	"sync"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/storage"
)

// SnapshotEventStore is an in-memory implementation of
// storage.SnapshotEventStore.
type SnapshotEventStore struct {
	mu   sync.RWMutex
	data []*domain.SnapshotRecorded
}

// NewSnapshotEventStore creates a new in-memory snapshot event store.
func NewSnapshotEventStore() *SnapshotEventStore {
	return &SnapshotEventStore{}
}

// Compile-time interface check.
var _ storage.SnapshotEventStore = (*SnapshotEventStore)(nil)

// InsertBulk appends a batch of events.
func (s *SnapshotEventStore) InsertBulk(_ context.Context, events []*domain.SnapshotRecorded) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		if ev == nil || ev.Account == "" {
			return storage.ErrInvalidInput
		}
		evCopy := *ev
		evCopy.Snapshot = ev.Snapshot.Clone()
		s.data = append(s.data, &evCopy)
	}
	return nil
}

// GetByAccount retrieves all events for an account, ordered by snapshot
// timestamp ASC.
func (s *SnapshotEventStore) GetByAccount(_ context.Context, account domain.Account) ([]*domain.SnapshotRecorded, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SnapshotRecorded
	for _, ev := range s.data {
		if ev.Account == account {
			evCopy := *ev
			evCopy.Snapshot = ev.Snapshot.Clone()
			result = append(result, &evCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Snapshot.Timestamp < result[j].Snapshot.Timestamp
	})

	return result, nil
}
