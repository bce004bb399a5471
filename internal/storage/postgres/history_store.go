package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/observability"
	"twab-ledger/internal/storage"
)

// HistoryStore implements storage.HistoryStore using PostgreSQL.
//
// Layout: one cursor row per account plus one row per written ring slot.
// Accumulators are stored as decimal text since they exceed 64 bits.
type HistoryStore struct {
	pool *Pool
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(pool *Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// Get returns the account's history, or a fresh zero-valued history for
// accounts never written.
func (s *HistoryStore) Get(ctx context.Context, account domain.Account) (*domain.History, error) {
	if account == "" {
		return nil, storage.ErrInvalidInput
	}

	start := time.Now()
	h, err := s.get(ctx, account)
	observability.RecordDBQuery("postgres", "history_get", time.Since(start).Seconds(), err)
	return h, err
}

func (s *HistoryStore) get(ctx context.Context, account domain.Account) (*domain.History, error) {
	h := &domain.History{}

	row := s.pool.QueryRow(ctx,
		`SELECT cursor, writes FROM twab_cursors WHERE account = $1`,
		string(account),
	)
	if err := row.Scan(&h.Cursor, &h.Writes); err != nil {
		if isNotFoundError(err) {
			return h, nil
		}
		return nil, fmt.Errorf("get cursor: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT slot_index, amount, ts FROM twab_slots WHERE account = $1`,
		string(account),
	)
	if err != nil {
		return nil, fmt.Errorf("get slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			slotIndex int
			amountStr string
			ts        int64
		)
		if err := rows.Scan(&slotIndex, &amountStr, &ts); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		if slotIndex < 0 || slotIndex >= domain.HistoryCapacity {
			return nil, fmt.Errorf("%w: slot index %d", storage.ErrInvalidInput, slotIndex)
		}
		amount, ok := new(big.Int).SetString(amountStr, 10)
		if !ok {
			return nil, fmt.Errorf("%w: amount %q", storage.ErrInvalidInput, amountStr)
		}
		h.Slots[slotIndex] = domain.Snapshot{
			Amount:    amount,
			Timestamp: uint32(ts),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return h, nil
}

// Append persists one ring write atomically: the changed slot plus the
// advanced cursor.
func (s *HistoryStore) Append(ctx context.Context, account domain.Account, slotIndex int, snap domain.Snapshot, cursor, writes int) error {
	if account == "" {
		return storage.ErrInvalidInput
	}
	if slotIndex < 0 || slotIndex >= domain.HistoryCapacity {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	err := s.append(ctx, account, slotIndex, snap, cursor, writes)
	observability.RecordDBQuery("postgres", "history_append", time.Since(start).Seconds(), err)
	return err
}

func (s *HistoryStore) append(ctx context.Context, account domain.Account, slotIndex int, snap domain.Snapshot, cursor, writes int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO twab_slots (account, slot_index, amount, ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account, slot_index)
		DO UPDATE SET amount = EXCLUDED.amount, ts = EXCLUDED.ts
	`,
		string(account),
		slotIndex,
		snap.AmountOrZero().String(),
		int64(snap.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("upsert slot: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO twab_cursors (account, cursor, writes)
		VALUES ($1, $2, $3)
		ON CONFLICT (account)
		DO UPDATE SET cursor = EXCLUDED.cursor, writes = EXCLUDED.writes
	`,
		string(account),
		cursor,
		writes,
	)
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}
