package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voxmate/internal/journal"
)

// DefaultRecordTimeout bounds a single guarded journal write.
const DefaultRecordTimeout = 500 * time.Millisecond

var _ journal.Store = (*GuardedJournal)(nil)

// GuardedJournal wraps a [journal.Store] with a circuit breaker and a write
// timeout. While the breaker is open entries are dropped instead of
// delaying the next utterance.
type GuardedJournal struct {
	store   journal.Store
	breaker *CircuitBreaker
	timeout time.Duration
	dropped atomic.Int64
}

// NewGuardedJournal wraps store. A non-positive timeout selects
// [DefaultRecordTimeout].
func NewGuardedJournal(store journal.Store, timeout time.Duration, cfg CircuitBreakerConfig) *GuardedJournal {
	if timeout <= 0 {
		timeout = DefaultRecordTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "journal"
	}
	return &GuardedJournal{store: store, breaker: NewCircuitBreaker(cfg), timeout: timeout}
}

// Record writes e unless the breaker is open, in which case e is dropped and
// nil is returned.
func (g *GuardedJournal) Record(ctx context.Context, e journal.Entry) error {
	err := g.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.store.Record(ctx, e)
	})
	if errors.Is(err, ErrCircuitOpen) {
		g.dropped.Add(1)
		slog.Debug("resilience: journal entry dropped, circuit open", "tab", e.Tab)
		return nil
	}
	return err
}

// Recent reads from the wrapped store.
func (g *GuardedJournal) Recent(ctx context.Context, tab string, limit int) ([]journal.Entry, error) {
	return g.store.Recent(ctx, tab, limit)
}

// Ping checks the wrapped store when it supports pinging and reports an
// open breaker as unhealthy.
func (g *GuardedJournal) Ping(ctx context.Context) error {
	if g.breaker.State() == StateOpen {
		return ErrCircuitOpen
	}
	if p, ok := g.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Dropped returns the number of entries dropped while the breaker was open.
func (g *GuardedJournal) Dropped() int64 { return g.dropped.Load() }

// Unwrap returns the wrapped store.
func (g *GuardedJournal) Unwrap() journal.Store { return g.store }

// Close closes the wrapped store.
func (g *GuardedJournal) Close() error { return g.store.Close() }
