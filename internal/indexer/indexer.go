// Package indexer drains emitted snapshot events into an append-only
// audit sink. It is observability plumbing: the ledger and oracle never
// depend on it.
package indexer

import (
	"context"
	"log"
	"time"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/events"
	"twab-ledger/internal/observability"
	"twab-ledger/internal/storage"
)

// Options configures a Sink.
type Options struct {
	FlushInterval time.Duration // Default: 5s
	BatchSize     int           // Default: 256 - flush early once buffered
	Buffer        int           // Default: 1024 - bus subscription buffer
	Logger        *log.Logger
}

// Sink subscribes to the event bus and batches events into a
// SnapshotEventStore.
type Sink struct {
	bus           *events.Bus
	store         storage.SnapshotEventStore
	flushInterval time.Duration
	batchSize     int
	buffer        int
	logger        *log.Logger
}

// NewSink creates a Sink over the given bus and store.
func NewSink(bus *events.Bus, store storage.SnapshotEventStore, opts Options) *Sink {
	if opts.FlushInterval == 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 256
	}
	if opts.Buffer == 0 {
		opts.Buffer = 1024
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Sink{
		bus:           bus,
		store:         store,
		flushInterval: opts.FlushInterval,
		batchSize:     opts.BatchSize,
		buffer:        opts.Buffer,
		logger:        opts.Logger,
	}
}

// Run consumes events until the context is cancelled, flushing on a
// timer or once the batch fills. A final flush runs on shutdown.
func (s *Sink) Run(ctx context.Context) {
	ch, cancel := s.bus.Subscribe(s.buffer)
	defer cancel()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	var batch []*domain.SnapshotRecorded

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Detached context so a shutdown flush still completes.
		flushCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.store.InsertBulk(flushCtx, batch)
		done()
		if err != nil {
			observability.DefaultMetrics.AuditFlushErrors.Inc()
			s.logger.Printf("audit flush of %d events failed: %v", len(batch), err)
		} else {
			observability.DefaultMetrics.AuditEventsFlushed.Add(float64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case ev, ok := <-ch:
			if !ok {
				flush()
				return
			}
			evCopy := ev
			batch = append(batch, &evCopy)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
