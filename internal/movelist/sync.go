package movelist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voxmate/pkg/board"
)

// DefaultDebounce is the quiet period after the last observed change before
// a resync runs.
const DefaultDebounce = 150 * time.Millisecond

// Snapshot is one observation of the host move list.
type Snapshot struct {
	// Text is the rendered move-list text.
	Text string

	// Force resyncs even when the token count is unchanged (the page was
	// reloaded or a new game started).
	Force bool
}

// Option is a functional option for configuring a [Synchronizer].
type Option func(*Synchronizer)

// WithDebounce overrides [DefaultDebounce].
func WithDebounce(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithOnSynced registers a callback invoked after every resync. It may be
// given several times.
func WithOnSynced(fn func(Report)) Option {
	return func(s *Synchronizer) {
		s.onSynced = append(s.onSynced, fn)
	}
}

// Synchronizer coalesces bursts of move-list observations and replays the
// latest one onto a fresh [board.Position].
//
// Observations enter through [Synchronizer.Observe], which never blocks, and
// are processed by the goroutine running [Synchronizer.Run]. Each resync
// produces a new Position delivered through the OnSynced callbacks, so the
// position the caller holds is never written concurrently.
type Synchronizer struct {
	debounce time.Duration
	inbox    chan Snapshot

	mu        sync.Mutex
	onSynced  []func(Report)
	lastCount int
}

// New creates a [Synchronizer].
func New(opts ...Option) *Synchronizer {
	s := &Synchronizer{
		debounce:  DefaultDebounce,
		inbox:     make(chan Snapshot, 1),
		lastCount: -1,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnSynced registers fn to be called after every resync.
func (s *Synchronizer) OnSynced(fn func(Report)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSynced = append(s.onSynced, fn)
}

// Observe queues snap for the debounce loop. A snapshot that has not been
// picked up yet is replaced; its Force flag carries over.
func (s *Synchronizer) Observe(snap Snapshot) {
	for {
		select {
		case s.inbox <- snap:
			return
		default:
		}
		select {
		case old := <-s.inbox:
			snap.Force = snap.Force || old.Force
		default:
		}
	}
}

// Run processes observations until ctx is cancelled. A resync fires once no
// new snapshot has arrived for the debounce period.
func (s *Synchronizer) Run(ctx context.Context) error {
	var (
		pending *Snapshot
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snap := <-s.inbox:
			if pending != nil {
				snap.Force = snap.Force || pending.Force
			}
			pending = &snap
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if pending != nil {
				s.Sync(*pending)
				pending = nil
			}
		}
	}
}

// Sync resyncs immediately without debouncing. It reports false when the
// snapshot was skipped because the token count did not change.
func (s *Synchronizer) Sync(snap Snapshot) (Report, bool) {
	tokens := ExtractTokens(snap.Text)

	s.mu.Lock()
	if !snap.Force && len(tokens) == s.lastCount {
		s.mu.Unlock()
		return Report{}, false
	}
	s.lastCount = len(tokens)
	callbacks := append([]func(Report){}, s.onSynced...)
	s.mu.Unlock()

	rep := Replay(board.NewPosition(), tokens)
	slog.Debug("movelist: resynced",
		"tokens", rep.Tokens,
		"applied", rep.Applied,
		"skipped", rep.Skipped,
		"forced", snap.Force,
	)
	for _, fn := range callbacks {
		fn(rep)
	}
	return rep, true
}

// Invalidate forgets the last token count so the next snapshot always
// resyncs.
func (s *Synchronizer) Invalidate() {
	s.mu.Lock()
	s.lastCount = -1
	s.mu.Unlock()
}
