// Package twab maintains per-account rings of cumulative balance-seconds
// snapshots and answers average-balance queries over recorded intervals.
//
// All functions here are pure with respect to storage: they operate on a
// domain.History value and leave persistence to the caller. Callers must
// serialize writes per account; the functions assume exclusive access to
// the history they are handed.
package twab

import (
	"math/big"

	"twab-ledger/internal/domain"
)

// MostRecentIndex returns the slot of the latest append, i.e. one behind
// the cursor. For an empty history this is HistoryCapacity-1, which is
// indistinguishable from a real write at that slot; use History.IsEmpty
// to tell the two apart.
func MostRecentIndex(h *domain.History) int {
	c := domain.HistoryCapacity
	return ((h.Cursor-1)%c + c) % c
}

// OldestIndex returns the slot holding the oldest live snapshot: the slot
// after the most recent one once the ring has wrapped, or slot 0 while it
// is still filling.
func OldestIndex(h *domain.History) int {
	next := (MostRecentIndex(h) + 1) % domain.HistoryCapacity
	if h.Slots[next].Timestamp == 0 {
		return 0
	}
	return next
}

// SlotAt reads the snapshot at rawIndex modulo the ring capacity.
// Negative indices are a logic error.
func SlotAt(h *domain.History, rawIndex int) (domain.Snapshot, error) {
	if rawIndex < 0 {
		return domain.Snapshot{}, ErrIndexOutOfRange
	}
	return h.Slots[rawIndex%domain.HistoryCapacity], nil
}

// Record conditionally appends a snapshot for the given second.
//
// balance is the balance the account held for the whole interval being
// closed, i.e. the balance before whatever change triggered this call.
// A call at an already-recorded second is a no-op and returns the
// existing snapshot with written == false. On success the history's
// cursor has advanced and the new snapshot plus its slot index are
// returned with written == true.
func Record(h *domain.History, balance uint64, now uint32) (snap domain.Snapshot, slotIndex int, written bool, err error) {
	lastIndex := MostRecentIndex(h)
	last := h.Slots[lastIndex]

	// One snapshot per distinct second.
	if last.Timestamp == now {
		return last, lastIndex, false, nil
	}

	// uint32 subtraction yields the correct elapsed seconds across a
	// single wraparound. First append: last.Timestamp is the sentinel 0,
	// so elapsed covers everything since the epoch.
	elapsed := now - last.Timestamp

	delta := new(big.Int).Mul(
		new(big.Int).SetUint64(balance),
		new(big.Int).SetUint64(uint64(elapsed)),
	)
	amount := new(big.Int).Add(last.AmountOrZero(), delta)
	if amount.Cmp(domain.MaxAmount) > 0 {
		return domain.Snapshot{}, 0, false, ErrAmountOverflow
	}

	snap = domain.Snapshot{Amount: amount, Timestamp: now}
	slotIndex = h.Cursor % domain.HistoryCapacity
	h.Slots[slotIndex] = snap
	h.Cursor = (slotIndex + 1) % domain.HistoryCapacity
	h.Writes++
	return snap, slotIndex, true, nil
}

// AverageBalanceBetween derives the average balance over the interval
// spanned by two adjacent snapshots: accumulator delta over elapsed
// seconds. Equal timestamps or a shrinking accumulator mean the history
// is corrupt.
func AverageBalanceBetween(before, after domain.Snapshot) (uint64, error) {
	elapsed := after.Timestamp - before.Timestamp
	if elapsed == 0 {
		return 0, ErrZeroInterval
	}
	delta := new(big.Int).Sub(after.AmountOrZero(), before.AmountOrZero())
	if delta.Sign() < 0 {
		return 0, ErrNonMonotonicAmount
	}
	avg := delta.Div(delta, new(big.Int).SetUint64(uint64(elapsed)))
	return avg.Uint64(), nil
}
