package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/observability"
	"twab-ledger/internal/storage"
)

// BalanceStore implements storage.BalanceStore using PostgreSQL.
// Balances are stored as decimal text to keep the full uint64 range.
type BalanceStore struct {
	pool *Pool
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(pool *Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// Get returns the account's balance; absent accounts read as zero.
func (s *BalanceStore) Get(ctx context.Context, account domain.Account) (uint64, error) {
	if account == "" {
		return 0, storage.ErrInvalidInput
	}

	start := time.Now()
	bal, err := s.get(ctx, account)
	observability.RecordDBQuery("postgres", "balance_get", time.Since(start).Seconds(), err)
	return bal, err
}

func (s *BalanceStore) get(ctx context.Context, account domain.Account) (uint64, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT balance FROM balances WHERE account = $1`,
		string(account),
	)

	var balanceStr string
	if err := row.Scan(&balanceStr); err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}

	balance, err := strconv.ParseUint(balanceStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: balance %q", storage.ErrInvalidInput, balanceStr)
	}
	return balance, nil
}

// Set overwrites the account's balance.
func (s *BalanceStore) Set(ctx context.Context, account domain.Account, balance uint64) error {
	if account == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO balances (account, balance)
		VALUES ($1, $2)
		ON CONFLICT (account)
		DO UPDATE SET balance = EXCLUDED.balance
	`,
		string(account),
		strconv.FormatUint(balance, 10),
	)
	observability.RecordDBQuery("postgres", "balance_set", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}
