package clickhouse

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/observability"
	"twab-ledger/internal/storage"
)

// SnapshotEventStore implements storage.SnapshotEventStore using
// ClickHouse. It is the audit sink for emitted snapshot events; rows are
// append-only and never read back by the core.
type SnapshotEventStore struct {
	conn *Conn
}

// NewSnapshotEventStore creates a new SnapshotEventStore.
func NewSnapshotEventStore(conn *Conn) *SnapshotEventStore {
	return &SnapshotEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotEventStore = (*SnapshotEventStore)(nil)

// InsertBulk appends a batch of events.
func (s *SnapshotEventStore) InsertBulk(ctx context.Context, events []*domain.SnapshotRecorded) error {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	err := s.insertBulk(ctx, events)
	observability.RecordDBQuery("clickhouse", "events_insert", time.Since(start).Seconds(), err)
	return err
}

func (s *SnapshotEventStore) insertBulk(ctx context.Context, events []*domain.SnapshotRecorded) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO snapshot_events (account, amount, ts, slot_index)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, ev := range events {
		if ev == nil || ev.Account == "" {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			string(ev.Account),
			ev.Snapshot.AmountOrZero().String(),
			ev.Snapshot.Timestamp,
			uint8(ev.SlotIndex),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByAccount retrieves all events for an account, ordered by snapshot
// timestamp ASC.
func (s *SnapshotEventStore) GetByAccount(ctx context.Context, account domain.Account) ([]*domain.SnapshotRecorded, error) {
	query := `
		SELECT account, amount, ts, slot_index
		FROM snapshot_events
		WHERE account = ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, string(account))
	if err != nil {
		return nil, fmt.Errorf("get events by account: %w", err)
	}
	defer rows.Close()

	var result []*domain.SnapshotRecorded
	for rows.Next() {
		var (
			acc       string
			amountStr string
			ts        uint32
			slotIndex uint8
		)
		if err := rows.Scan(&acc, &amountStr, &ts, &slotIndex); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		amount, ok := new(big.Int).SetString(amountStr, 10)
		if !ok {
			return nil, fmt.Errorf("%w: amount %q", storage.ErrInvalidInput, amountStr)
		}
		result = append(result, &domain.SnapshotRecorded{
			Account:   domain.Account(acc),
			Snapshot:  domain.Snapshot{Amount: amount, Timestamp: ts},
			SlotIndex: int(slotIndex),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return result, nil
}
