// Package events fans snapshot events out to in-process subscribers.
package events

import (
	"context"
	"sync"

	"twab-ledger/internal/domain"
)

// Emitter publishes snapshot events. Emitting is fire-and-forget: the
// core's correctness never depends on anyone receiving an event.
type Emitter interface {
	Emit(ctx context.Context, ev domain.SnapshotRecorded)
}

// NopEmitter discards all events.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(context.Context, domain.SnapshotRecorded) {}

// Bus is a fan-out Emitter. Each subscriber gets its own buffered
// channel; events are dropped for subscribers that cannot keep up rather
// than blocking the write path.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.SnapshotRecorded
	nextID int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]chan domain.SnapshotRecorded),
	}
}

// Compile-time interface check.
var _ Emitter = (*Bus)(nil)

// Subscribe registers a new subscriber with the given channel buffer.
// The returned cancel function unregisters and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan domain.SnapshotRecorded, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan domain.SnapshotRecorded, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Emit delivers the event to every subscriber without blocking.
func (b *Bus) Emit(_ context.Context, ev domain.SnapshotRecorded) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop rather than stall the write path.
		}
	}
}
