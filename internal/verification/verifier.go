// Package verification cross-checks persisted snapshot histories against
// the append-only audit event log. Every successful ring write emits
// exactly one event, so replaying the log in timestamp order must
// reproduce the stored ring state bit for bit.
package verification

import (
	"context"
	"fmt"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/storage"
)

// FieldDivergence represents a mismatch between the stored history and
// the history rebuilt from the audit log.
type FieldDivergence struct {
	Field    string      // field name, e.g. "slot[3].amount"
	Expected interface{} // value rebuilt from the audit log
	Actual   interface{} // value in the stored history
}

// Result contains the outcome of verifying a single account.
type Result struct {
	Account     domain.Account
	Match       bool
	Divergences []FieldDivergence
}

// Report contains results for batch verification.
type Report struct {
	TotalAccounts     int
	MatchedAccounts   int
	DivergentAccounts int
	Results           []Result
}

// Verifier rebuilds per-account histories from the audit log and
// compares them against the history store.
type Verifier struct {
	histories storage.HistoryStore
	events    storage.SnapshotEventStore
}

// New creates a Verifier over the given stores.
func New(histories storage.HistoryStore, events storage.SnapshotEventStore) *Verifier {
	return &Verifier{histories: histories, events: events}
}

// VerifyAccount checks one account's stored history against the audit
// log.
func (v *Verifier) VerifyAccount(ctx context.Context, account domain.Account) (*Result, error) {
	evs, err := v.events.GetByAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("load audit events for %s: %w", account, err)
	}

	stored, err := v.histories.Get(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("load history of %s: %w", account, err)
	}

	rebuilt, err := rebuildHistory(evs)
	if err != nil {
		return nil, fmt.Errorf("rebuild history of %s: %w", account, err)
	}

	divergences := compareHistories(rebuilt, stored)
	return &Result{
		Account:     account,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}, nil
}

// VerifyAccounts checks every given account and aggregates the results.
func (v *Verifier) VerifyAccounts(ctx context.Context, accounts []domain.Account) (*Report, error) {
	report := &Report{TotalAccounts: len(accounts)}
	for _, account := range accounts {
		result, err := v.VerifyAccount(ctx, account)
		if err != nil {
			return nil, err
		}
		if result.Match {
			report.MatchedAccounts++
		} else {
			report.DivergentAccounts++
		}
		report.Results = append(report.Results, *result)
	}
	return report, nil
}

// rebuildHistory replays audit events in order, applying each write to
// its recorded ring slot. Events arrive ordered by snapshot timestamp,
// which matches emission order since per-account timestamps never
// decrease and each second writes at most once.
func rebuildHistory(events []*domain.SnapshotRecorded) (*domain.History, error) {
	h := &domain.History{}
	for i, ev := range events {
		if ev.SlotIndex < 0 || ev.SlotIndex >= domain.HistoryCapacity {
			return nil, fmt.Errorf("event %d: slot index %d out of range", i, ev.SlotIndex)
		}
		h.Slots[ev.SlotIndex] = ev.Snapshot.Clone()
		h.Cursor = (ev.SlotIndex + 1) % domain.HistoryCapacity
		h.Writes++
	}
	return h, nil
}

func compareHistories(rebuilt, stored *domain.History) []FieldDivergence {
	var divergences []FieldDivergence

	if rebuilt.Cursor != stored.Cursor {
		divergences = append(divergences, FieldDivergence{
			Field:    "cursor",
			Expected: rebuilt.Cursor,
			Actual:   stored.Cursor,
		})
	}
	if rebuilt.Writes != stored.Writes {
		divergences = append(divergences, FieldDivergence{
			Field:    "writes",
			Expected: rebuilt.Writes,
			Actual:   stored.Writes,
		})
	}

	for i := 0; i < domain.HistoryCapacity; i++ {
		want := rebuilt.Slots[i]
		got := stored.Slots[i]
		if want.Timestamp != got.Timestamp {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("slot[%d].timestamp", i),
				Expected: want.Timestamp,
				Actual:   got.Timestamp,
			})
		}
		if want.AmountOrZero().Cmp(got.AmountOrZero()) != 0 {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("slot[%d].amount", i),
				Expected: want.AmountOrZero().String(),
				Actual:   got.AmountOrZero().String(),
			})
		}
	}

	return divergences
}
