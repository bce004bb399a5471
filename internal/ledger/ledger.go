// Package ledger implements a minimal fungible-token ledger that keeps a
// balance snapshot history for every account it touches.
//
// Every balance-changing operation appends at most one snapshot per
// affected non-zero account, recording the balance the account held for
// the just-elapsed interval (the balance before the change). The ledger
// serializes operations per account internally, so callers may invoke
// it concurrently.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/events"
	"twab-ledger/internal/observability"
	"twab-ledger/internal/storage"
	"twab-ledger/internal/twab"
)

// Errors returned by ledger operations.
var (
	// ErrInvalidDecimals is returned when the configured decimals fail
	// the validity precondition at construction.
	ErrInvalidDecimals = errors.New("decimals must be greater than zero")

	// ErrInsufficientBalance is returned when a debit exceeds the
	// account's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrBalanceOverflow is returned when a credit would push a balance
	// past the 64-bit limit.
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrInvalidAmount is returned for zero-amount operations.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
)

// Config describes the token the ledger tracks.
type Config struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// Ledger moves balances between accounts and maintains their snapshot
// histories.
type Ledger struct {
	cfg       Config
	balances  storage.BalanceStore
	histories storage.HistoryStore
	emitter   events.Emitter

	// Per-account mutexes serializing balance-changing operations; the
	// history append math assumes exclusive access per account.
	locks sync.Map // domain.Account -> *sync.Mutex
}

// New creates a ledger. Decimals must be non-zero.
func New(cfg Config, balances storage.BalanceStore, histories storage.HistoryStore, emitter events.Emitter) (*Ledger, error) {
	if cfg.Decimals == 0 {
		return nil, ErrInvalidDecimals
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Ledger{
		cfg:       cfg,
		balances:  balances,
		histories: histories,
		emitter:   emitter,
	}, nil
}

// Config returns the token configuration.
func (l *Ledger) Config() Config {
	return l.cfg
}

// BalanceOf returns the account's current live balance.
func (l *Ledger) BalanceOf(ctx context.Context, account domain.Account) (uint64, error) {
	if account.IsZero() {
		return 0, nil
	}
	return l.balances.Get(ctx, account)
}

// Mint credits amount to the account at the given second.
func (l *Ledger) Mint(ctx context.Context, to domain.Account, amount uint64, now uint32) error {
	err := l.move(ctx, domain.ZeroAccount, to, amount, now)
	observability.RecordLedgerOp("mint", err)
	return err
}

// Burn debits amount from the account at the given second.
func (l *Ledger) Burn(ctx context.Context, from domain.Account, amount uint64, now uint32) error {
	err := l.move(ctx, from, domain.ZeroAccount, amount, now)
	observability.RecordLedgerOp("burn", err)
	return err
}

// Transfer moves amount between two accounts at the given second.
func (l *Ledger) Transfer(ctx context.Context, from, to domain.Account, amount uint64, now uint32) error {
	err := l.move(ctx, from, to, amount, now)
	observability.RecordLedgerOp("transfer", err)
	return err
}

// pendingAppend is a history write staged before anything is persisted,
// so that an overflow on either side aborts the whole operation with no
// partial state committed.
type pendingAppend struct {
	account domain.Account
	history *domain.History
	snap    domain.Snapshot
	slot    int
	written bool
}

func (l *Ledger) move(ctx context.Context, from, to domain.Account, amount uint64, now uint32) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if from.IsZero() && to.IsZero() {
		return fmt.Errorf("%w: both sides are the zero account", domain.ErrInvalidAccount)
	}
	if from == to {
		return nil
	}

	unlock := l.lockAccounts(from, to)
	defer unlock()

	fromBalance, toBalance, err := l.loadBalances(ctx, from, to)
	if err != nil {
		return err
	}
	if !from.IsZero() && fromBalance < amount {
		return ErrInsufficientBalance
	}
	if !to.IsZero() && toBalance > ^uint64(0)-amount {
		return ErrBalanceOverflow
	}

	// Stage all history appends first: the accumulator math is pure, so
	// an overflow surfaces before any store has been touched.
	var pending []pendingAppend
	for _, side := range []struct {
		account domain.Account
		balance uint64
	}{
		{from, fromBalance},
		{to, toBalance},
	} {
		if side.account.IsZero() {
			continue
		}
		p, err := l.stageAppend(ctx, side.account, side.balance, now)
		if err != nil {
			if errors.Is(err, twab.ErrAmountOverflow) {
				observability.RecordOverflow()
			}
			return err
		}
		pending = append(pending, p)
	}

	// Persistence below spans two stores with no shared transaction: a
	// storage failure mid-way leaves a history appended without its
	// balance write. The audit verifier surfaces such divergence;
	// closing the window needs both stores behind one transactional
	// backend.
	for _, p := range pending {
		if !p.written {
			observability.RecordSnapshotNoop()
			continue
		}
		if err := l.histories.Append(ctx, p.account, p.slot, p.snap, p.history.Cursor, p.history.Writes); err != nil {
			return fmt.Errorf("append snapshot for %s: %w", p.account, err)
		}
		observability.RecordSnapshot()
		l.emitter.Emit(ctx, domain.SnapshotRecorded{
			Account:   p.account,
			Snapshot:  p.snap.Clone(),
			SlotIndex: p.slot,
		})
	}

	if !from.IsZero() {
		if err := l.balances.Set(ctx, from, fromBalance-amount); err != nil {
			return fmt.Errorf("debit %s: %w", from, err)
		}
	}
	if !to.IsZero() {
		if err := l.balances.Set(ctx, to, toBalance+amount); err != nil {
			return fmt.Errorf("credit %s: %w", to, err)
		}
	}
	return nil
}

// lockAccounts acquires the per-account mutexes for both non-zero sides
// in lexical order, so two opposite-direction transfers cannot deadlock.
// The returned func releases them in reverse order.
func (l *Ledger) lockAccounts(from, to domain.Account) func() {
	first, second := from, to
	if second < first {
		first, second = second, first
	}

	var unlocks []func()
	for _, account := range []domain.Account{first, second} {
		if account.IsZero() {
			continue
		}
		mu := l.lockFor(account)
		mu.Lock()
		unlocks = append(unlocks, mu.Unlock)
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (l *Ledger) lockFor(account domain.Account) *sync.Mutex {
	if mu, ok := l.locks.Load(account); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := l.locks.LoadOrStore(account, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (l *Ledger) loadBalances(ctx context.Context, from, to domain.Account) (fromBalance, toBalance uint64, err error) {
	if !from.IsZero() {
		fromBalance, err = l.balances.Get(ctx, from)
		if err != nil {
			return 0, 0, fmt.Errorf("load balance of %s: %w", from, err)
		}
	}
	if !to.IsZero() {
		toBalance, err = l.balances.Get(ctx, to)
		if err != nil {
			return 0, 0, fmt.Errorf("load balance of %s: %w", to, err)
		}
	}
	return fromBalance, toBalance, nil
}

func (l *Ledger) stageAppend(ctx context.Context, account domain.Account, balanceBefore uint64, now uint32) (pendingAppend, error) {
	h, err := l.histories.Get(ctx, account)
	if err != nil {
		return pendingAppend{}, fmt.Errorf("load history of %s: %w", account, err)
	}
	snap, slot, written, err := twab.Record(h, balanceBefore, now)
	if err != nil {
		return pendingAppend{}, fmt.Errorf("record snapshot for %s: %w", account, err)
	}
	return pendingAppend{
		account: account,
		history: h,
		snap:    snap,
		slot:    slot,
		written: written,
	}, nil
}
