package storage

import (
	"context"

	"twab-ledger/internal/domain"
)

// HistoryStore persists per-account snapshot rings.
//
// Writes for one account must be serialized by the caller; the ledger
// invokes Append synchronously as part of each balance-changing
// operation and never concurrently for the same account.
type HistoryStore interface {
	// Get returns the account's history. Accounts never written before
	// read as a fresh all-sentinel history, not an error.
	Get(ctx context.Context, account domain.Account) (*domain.History, error)

	// Append persists a single ring write: the changed slot plus the
	// advanced cursor and write count.
	Append(ctx context.Context, account domain.Account, slotIndex int, snap domain.Snapshot, cursor, writes int) error
}

// BalanceStore persists current live balances.
type BalanceStore interface {
	// Get returns the account's balance; absent accounts read as zero.
	Get(ctx context.Context, account domain.Account) (uint64, error)

	// Set overwrites the account's balance.
	Set(ctx context.Context, account domain.Account, balance uint64) error
}

// SnapshotEventStore is an append-only audit sink for emitted snapshot
// events. The ledger and oracle never read it back; it serves external
// indexing and audit verification.
type SnapshotEventStore interface {
	// InsertBulk appends a batch of events.
	InsertBulk(ctx context.Context, events []*domain.SnapshotRecorded) error

	// GetByAccount retrieves all events for an account, ordered by
	// snapshot timestamp ASC.
	GetByAccount(ctx context.Context, account domain.Account) ([]*domain.SnapshotRecorded, error)
}
