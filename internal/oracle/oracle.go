// Package oracle answers historical average-balance queries against
// per-account snapshot histories.
package oracle

import (
	"context"
	"fmt"
	"time"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/observability"
	"twab-ledger/internal/storage"
	"twab-ledger/internal/twab"
)

// BalanceSource supplies current live balances. The ledger satisfies it;
// the oracle falls back to it when no snapshot bounds the query from
// above.
type BalanceSource interface {
	BalanceOf(ctx context.Context, account domain.Account) (uint64, error)
}

// Oracle derives historical balances from recorded snapshots. Queries
// never mutate state.
type Oracle struct {
	histories storage.HistoryStore
	balances  BalanceSource
}

// New creates an Oracle over the given history store and live-balance
// source.
func New(histories storage.HistoryStore, balances BalanceSource) *Oracle {
	return &Oracle{histories: histories, balances: balances}
}

// GetBalanceAt returns the account's derived balance as of target.
// Targets in the future are clamped to now. Times before the oldest
// recorded snapshot resolve to zero; times at or after the latest
// snapshot resolve to the current live balance.
func (o *Oracle) GetBalanceAt(ctx context.Context, account domain.Account, target, now uint32) (uint64, error) {
	start := time.Now()
	bal, path, err := o.balanceAt(ctx, account, target, now)
	observability.RecordBalanceQuery(path, time.Since(start).Seconds())
	return bal, err
}

// GetBalancesAt is the batched form of GetBalanceAt: one independent
// query per target, results in input order.
func (o *Oracle) GetBalancesAt(ctx context.Context, account domain.Account, targets []uint32, now uint32) ([]uint64, error) {
	results := make([]uint64, len(targets))
	for i, target := range targets {
		bal, err := o.GetBalanceAt(ctx, account, target, now)
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", target, err)
		}
		results[i] = bal
	}
	return results, nil
}

func (o *Oracle) balanceAt(ctx context.Context, account domain.Account, target, now uint32) (uint64, string, error) {
	// Queries may not ask about the future.
	if target > now {
		target = now
	}

	h, err := o.histories.Get(ctx, account)
	if err != nil {
		return 0, "error", fmt.Errorf("load history: %w", err)
	}

	// No history at all: the live balance has held since forever.
	if h.IsEmpty() {
		bal, err := o.balances.BalanceOf(ctx, account)
		if err != nil {
			return 0, "error", fmt.Errorf("live balance: %w", err)
		}
		return bal, "live", nil
	}

	recentIndex := twab.MostRecentIndex(h)
	latest, err := twab.SlotAt(h, recentIndex)
	if err != nil {
		return 0, "error", err
	}

	// Nothing recorded after target: no snapshot bounds the interval
	// from above, so the live balance is the answer.
	if twab.TimeIsAtOrBefore(now, latest.Timestamp, target) {
		bal, err := o.balances.BalanceOf(ctx, account)
		if err != nil {
			return 0, "error", fmt.Errorf("live balance: %w", err)
		}
		return bal, "live", nil
	}

	oldest, err := twab.SlotAt(h, twab.OldestIndex(h))
	if err != nil {
		return 0, "error", err
	}

	// Target predates all recorded history.
	if !twab.TimeIsAtOrBefore(now, oldest.Timestamp, target) {
		return 0, "before_history", nil
	}

	before, after, err := twab.BracketAround(h, target, now)
	if err != nil {
		return 0, "error", err
	}
	bal, err := twab.AverageBalanceBetween(before, after)
	if err != nil {
		return 0, "error", err
	}
	return bal, "bracket", nil
}
