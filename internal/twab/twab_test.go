package twab

import (
	"errors"
	"math/big"
	"testing"

	"twab-ledger/internal/domain"
)

// recordAll appends a sequence of (balance, timestamp) pairs and fails
// the test on any error.
func recordAll(t *testing.T, h *domain.History, pairs [][2]uint64) {
	t.Helper()
	for _, p := range pairs {
		if _, _, _, err := Record(h, p[0], uint32(p[1])); err != nil {
			t.Fatalf("Record(%d, %d) failed: %v", p[0], p[1], err)
		}
	}
}

func TestRecord_FirstWrite(t *testing.T) {
	h := &domain.History{}

	snap, slot, written, err := Record(h, 0, 100)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if !written {
		t.Fatal("expected first record to write")
	}
	if slot != 0 {
		t.Errorf("slot mismatch: got %d, want 0", slot)
	}
	if snap.Timestamp != 100 {
		t.Errorf("timestamp mismatch: got %d, want 100", snap.Timestamp)
	}
	// Zero balance held since the epoch accumulates nothing.
	if snap.AmountOrZero().Sign() != 0 {
		t.Errorf("amount mismatch: got %s, want 0", snap.AmountOrZero())
	}
	if h.IsEmpty() {
		t.Error("history should not be empty after a write")
	}
	if h.Cursor != 1 {
		t.Errorf("cursor mismatch: got %d, want 1", h.Cursor)
	}
}

func TestRecord_AccumulatesBalanceSeconds(t *testing.T) {
	h := &domain.History{}
	recordAll(t, h, [][2]uint64{{0, 100}, {10, 200}, {10, 300}})

	want := []struct {
		slot   int
		amount int64
		ts     uint32
	}{
		{0, 0, 100},
		{1, 1000, 200}, // 10 balance * 100s
		{2, 2000, 300},
	}
	for _, w := range want {
		got := h.Slots[w.slot]
		if got.Timestamp != w.ts {
			t.Errorf("slot %d timestamp: got %d, want %d", w.slot, got.Timestamp, w.ts)
		}
		if got.AmountOrZero().Cmp(big.NewInt(w.amount)) != 0 {
			t.Errorf("slot %d amount: got %s, want %d", w.slot, got.AmountOrZero(), w.amount)
		}
	}
}

func TestRecord_IdempotentSameSecond(t *testing.T) {
	h := &domain.History{}
	recordAll(t, h, [][2]uint64{{0, 100}, {10, 200}})

	before := h.Clone()

	snap, slot, written, err := Record(h, 999, 200)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if written {
		t.Error("same-second record should be a no-op")
	}
	if slot != 1 {
		t.Errorf("slot mismatch: got %d, want 1", slot)
	}
	if snap.Timestamp != 200 {
		t.Errorf("returned snapshot timestamp: got %d, want 200", snap.Timestamp)
	}
	if h.Cursor != before.Cursor || h.Writes != before.Writes {
		t.Errorf("history changed by no-op: cursor %d->%d writes %d->%d",
			before.Cursor, h.Cursor, before.Writes, h.Writes)
	}
	for i := range h.Slots {
		if h.Slots[i].Timestamp != before.Slots[i].Timestamp {
			t.Errorf("slot %d mutated by no-op", i)
		}
	}
}

func TestRecord_Overflow(t *testing.T) {
	h := &domain.History{}
	if _, _, _, err := Record(h, 0, 10); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	// Pin the last snapshot at the accumulator ceiling.
	h.Slots[0].Amount = new(big.Int).Set(domain.MaxAmount)

	_, _, _, err := Record(h, 1, 11)
	if !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
	// Failed append must not advance the ring.
	if h.Cursor != 1 || h.Writes != 1 {
		t.Errorf("ring advanced on overflow: cursor %d writes %d", h.Cursor, h.Writes)
	}
}

func TestRecord_RingWraparound(t *testing.T) {
	h := &domain.History{}

	for i := 0; i < domain.HistoryCapacity+1; i++ {
		now := uint32(100 + i*10)
		_, slot, written, err := Record(h, 1, now)
		if err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
		if !written {
			t.Fatalf("Record %d unexpectedly skipped", i)
		}
		if want := i % domain.HistoryCapacity; slot != want {
			t.Fatalf("Record %d slot: got %d, want %d", i, slot, want)
		}
	}

	// The (capacity+1)-th append overwrote slot 0.
	lastTs := uint32(100 + domain.HistoryCapacity*10)
	if h.Slots[0].Timestamp != lastTs {
		t.Errorf("slot 0 timestamp: got %d, want %d", h.Slots[0].Timestamp, lastTs)
	}
	// The original first snapshot (ts=100) is gone.
	for i, s := range h.Slots {
		if s.Timestamp == 100 {
			t.Errorf("slot %d still holds the evicted first snapshot", i)
		}
	}
	if got := OldestIndex(h); got != 1 {
		t.Errorf("oldest index: got %d, want 1", got)
	}
	if got := MostRecentIndex(h); got != 0 {
		t.Errorf("most recent index: got %d, want 0", got)
	}
}

func TestRecord_MonotonicWalk(t *testing.T) {
	h := &domain.History{}
	pairs := make([][2]uint64, 0, 40)
	for i := 0; i < 40; i++ {
		pairs = append(pairs, [2]uint64{uint64(i % 7), uint64(50 + i*13)})
	}
	recordAll(t, h, pairs)

	now := uint32(50 + 40*13)
	oldest := OldestIndex(h)
	prev := h.Slots[oldest]
	for i := 1; i < domain.HistoryCapacity; i++ {
		cur := h.Slots[(oldest+i)%domain.HistoryCapacity]
		if cur.Timestamp == 0 {
			break
		}
		if !TimeIsAtOrBefore(now, prev.Timestamp, cur.Timestamp) {
			t.Fatalf("timestamps not monotonic at ring offset %d: %d then %d", i, prev.Timestamp, cur.Timestamp)
		}
		if cur.AmountOrZero().Cmp(prev.AmountOrZero()) < 0 {
			t.Fatalf("accumulator decreased at ring offset %d: %s then %s", i, prev.AmountOrZero(), cur.AmountOrZero())
		}
		prev = cur
	}
}

func TestMostRecentIndex_EmptyHistory(t *testing.T) {
	h := &domain.History{}
	if got := MostRecentIndex(h); got != domain.HistoryCapacity-1 {
		t.Errorf("got %d, want %d", got, domain.HistoryCapacity-1)
	}
	if !h.IsEmpty() {
		t.Error("zero-valued history should be empty")
	}
}

func TestSlotAt(t *testing.T) {
	h := &domain.History{}
	recordAll(t, h, [][2]uint64{{5, 100}})

	snap, err := SlotAt(h, domain.HistoryCapacity) // wraps to slot 0
	if err != nil {
		t.Fatalf("SlotAt failed: %v", err)
	}
	if snap.Timestamp != 100 {
		t.Errorf("timestamp mismatch: got %d, want 100", snap.Timestamp)
	}

	if _, err := SlotAt(h, -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestAverageBalanceBetween(t *testing.T) {
	before := domain.Snapshot{Amount: big.NewInt(1000), Timestamp: 200}
	after := domain.Snapshot{Amount: big.NewInt(2000), Timestamp: 300}

	avg, err := AverageBalanceBetween(before, after)
	if err != nil {
		t.Fatalf("AverageBalanceBetween failed: %v", err)
	}
	if avg != 10 {
		t.Errorf("average: got %d, want 10", avg)
	}
}

func TestAverageBalanceBetween_ZeroInterval(t *testing.T) {
	s := domain.Snapshot{Amount: big.NewInt(1000), Timestamp: 200}
	if _, err := AverageBalanceBetween(s, s); !errors.Is(err, ErrZeroInterval) {
		t.Errorf("expected ErrZeroInterval, got %v", err)
	}
}

func TestAverageBalanceBetween_NonMonotonic(t *testing.T) {
	before := domain.Snapshot{Amount: big.NewInt(2000), Timestamp: 200}
	after := domain.Snapshot{Amount: big.NewInt(1000), Timestamp: 300}
	if _, err := AverageBalanceBetween(before, after); !errors.Is(err, ErrNonMonotonicAmount) {
		t.Errorf("expected ErrNonMonotonicAmount, got %v", err)
	}
}
