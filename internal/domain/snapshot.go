package domain

import "math/big"

// HistoryCapacity is the fixed number of snapshot slots kept per account.
// Once full, the oldest snapshot is overwritten by the next append.
const HistoryCapacity = 32

// MaxAmount is the largest representable accumulator value (2^224 - 1).
// Appends that would exceed it fail instead of wrapping.
var MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 224), big.NewInt(1))

// Snapshot is one recorded (cumulative balance-seconds, timestamp) pair.
// Amount is the running sum of balance multiplied by seconds held; the
// difference between two snapshots divided by their time distance gives
// the average balance over that interval.
type Snapshot struct {
	Amount    *big.Int // cumulative balance-seconds, nil reads as zero
	Timestamp uint32   // seconds since epoch, wraps at 2^32
}

// AmountOrZero returns the accumulator value, treating nil as zero.
func (s Snapshot) AmountOrZero() *big.Int {
	if s.Amount == nil {
		return new(big.Int)
	}
	return s.Amount
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Timestamp: s.Timestamp}
	if s.Amount != nil {
		out.Amount = new(big.Int).Set(s.Amount)
	}
	return out
}

// History is a per-account ring of snapshots. The zero value is a valid
// empty history: unwritten slots keep the sentinel Timestamp == 0, which
// means a real write at epoch second zero is never observable.
type History struct {
	Slots  [HistoryCapacity]Snapshot
	Cursor int // next slot to write; most recent write is one behind
	Writes int // lifetime append count, distinguishes empty from full rings
}

// IsEmpty reports whether no snapshot has ever been appended.
func (h *History) IsEmpty() bool {
	return h.Writes == 0
}

// Clone returns a deep copy of the history.
func (h *History) Clone() *History {
	out := &History{Cursor: h.Cursor, Writes: h.Writes}
	for i := range h.Slots {
		out.Slots[i] = h.Slots[i].Clone()
	}
	return out
}
