package events

import (
	"context"
	"math/big"
	"testing"

	"twab-ledger/internal/domain"
)

func testEvent(ts uint32) domain.SnapshotRecorded {
	return domain.SnapshotRecorded{
		Account:   "alice",
		Snapshot:  domain.Snapshot{Amount: big.NewInt(1000), Timestamp: ts},
		SlotIndex: 0,
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	ch1, cancel1 := bus.Subscribe(4)
	defer cancel1()
	ch2, cancel2 := bus.Subscribe(4)
	defer cancel2()

	bus.Emit(ctx, testEvent(100))

	for i, ch := range []<-chan domain.SnapshotRecorded{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Snapshot.Timestamp != 100 {
				t.Errorf("subscriber %d: timestamp %d, want 100", i, ev.Snapshot.Timestamp)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	ch, cancel := bus.Subscribe(1)
	defer cancel()

	// Second emit overflows the buffer and must be dropped, not block.
	bus.Emit(ctx, testEvent(100))
	bus.Emit(ctx, testEvent(200))

	ev := <-ch
	if ev.Snapshot.Timestamp != 100 {
		t.Errorf("timestamp: got %d, want 100", ev.Snapshot.Timestamp)
	}
	select {
	case ev := <-ch:
		t.Errorf("unexpected second event with timestamp %d", ev.Snapshot.Timestamp)
	default:
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe(1)
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}

	// Cancel is idempotent and emitting after cancel is safe.
	cancel()
	bus.Emit(context.Background(), testEvent(100))
}

func TestNopEmitter(t *testing.T) {
	var e Emitter = NopEmitter{}
	e.Emit(context.Background(), testEvent(100))
}
