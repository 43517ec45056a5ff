// Package controller holds the per-tab session context: everything one
// browser tab needs to turn transcripts into moves on the host page.
//
// A [Controller] owns its shadow board, move-list synchronizer, confirmation
// dialogue and oracle. All of them are mutated only on the goroutine running
// [Controller.Run]; other goroutines talk to it by posting tasks to its
// inbox, so transcripts are processed strictly in arrival order.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxmate/internal/confirm"
	"github.com/MrWong99/voxmate/internal/journal"
	"github.com/MrWong99/voxmate/internal/movelist"
	"github.com/MrWong99/voxmate/internal/observe"
	"github.com/MrWong99/voxmate/internal/oracle"
	"github.com/MrWong99/voxmate/internal/resolve"
	"github.com/MrWong99/voxmate/internal/transcript"
	"github.com/MrWong99/voxmate/pkg/board"
	"github.com/MrWong99/voxmate/pkg/provider/tts"
	"github.com/MrWong99/voxmate/pkg/types"
)

// ErrStopped is returned when a task is posted to a controller whose Run
// loop has exited.
var ErrStopped = errors.New("controller: stopped")

// inboxSize bounds the number of queued tasks before posters block.
const inboxSize = 64

// Settings are the user preferences pushed by the extension popup.
type Settings struct {
	// AutoConfirm commits resolved moves without asking.
	AutoConfirm bool `json:"autoConfirm" yaml:"auto_confirm"`

	// EnableTTS turns spoken feedback on.
	EnableTTS bool `json:"enableTTS" yaml:"enable_tts"`

	// UseVosk selects the offline recognizer over the browser one.
	UseVosk bool `json:"useVosk" yaml:"use_vosk"`

	// EnableVoice starts recognition for the tab.
	EnableVoice bool `json:"enableVoice" yaml:"enable_voice"`
}

// task is a unit of work executed on the controller goroutine.
type task func(ctx context.Context)

// Option is a functional option for configuring a [Controller].
type Option func(*Controller)

// WithNormalizer replaces the default transcript normalizer.
func WithNormalizer(n *transcript.Normalizer) Option {
	return func(c *Controller) { c.normalizer = n }
}

// WithResolver replaces the default move resolver.
func WithResolver(r *resolve.Resolver) Option {
	return func(c *Controller) { c.resolver = r }
}

// WithExecutor sets the component that drives the host page. Without one,
// committed moves only advance the oracle.
func WithExecutor(e Executor) Option {
	return func(c *Controller) { c.exec = e }
}

// WithSpeaker sets the text-to-speech output.
func WithSpeaker(s tts.Speaker) Option {
	return func(c *Controller) { c.speaker = s }
}

// WithJournal sets the store every final utterance is recorded in.
func WithJournal(j journal.Store) Option {
	return func(c *Controller) { c.journal = j }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithTracerProvider records utterance spans on tp instead of the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Controller) { c.tracer = observe.Tracer(tp) }
}

// WithSettings sets the initial settings.
func WithSettings(s Settings) Option {
	return func(c *Controller) { c.settings = s }
}

// WithStatus registers fn to receive every status line shown to the user.
func WithStatus(fn func(string)) Option {
	return func(c *Controller) { c.onStatus = fn }
}

// WithExecTimeout bounds one move execution across all attempts.
func WithExecTimeout(d time.Duration) Option {
	return func(c *Controller) { c.execTimeout = d }
}

// WithExecAttempts sets how many execution methods are tried before a move
// is reported as failed.
func WithExecAttempts(n int) Option {
	return func(c *Controller) { c.attempts = n }
}

// WithDebounce sets the move-list debounce period.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// Controller is the session context of one browser tab.
type Controller struct {
	tab string

	normalizer *transcript.Normalizer
	resolver   *resolve.Resolver
	dialogue   *confirm.Dialogue
	sync       *movelist.Synchronizer
	shadow     *oracle.Shadow
	exec       Executor
	speaker    tts.Speaker
	journal    journal.Store
	metrics    *observe.Metrics
	tracer     trace.Tracer
	onStatus   func(string)

	execTimeout time.Duration
	attempts    int
	debounce    time.Duration

	inbox chan task
	done  chan struct{}
	once  sync.Once

	// stopping is closed when the Run goroutine stops draining inbox, before
	// done, so the synchronizer can give up a blocked hand-off.
	stopping chan struct{}
	stopOnce sync.Once

	// echo is the last move this controller committed; the host reports it
	// back as a move event which must not be applied twice. Owned by the
	// Run goroutine.
	echo string

	mu         sync.Mutex
	oracle     oracle.Oracle
	settings   Settings
	status     string
	onSettings []func(Settings)
}

// New creates a [Controller] for tab. The oracle starts as the shadow board
// until [Controller.SetCapabilities] probes for a better one.
func New(tab string, opts ...Option) *Controller {
	c := &Controller{
		tab:         tab,
		execTimeout: DefaultExecTimeout,
		attempts:    DefaultExecAttempts,
		debounce:    movelist.DefaultDebounce,
		inbox:       make(chan task, inboxSize),
		done:        make(chan struct{}),
		stopping:    make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.normalizer == nil {
		c.normalizer = transcript.New()
	}
	if c.resolver == nil {
		c.resolver = resolve.New()
	}
	if c.speaker == nil {
		c.speaker = tts.Nop{}
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.tracer == nil {
		c.tracer = observe.Tracer(nil)
	}
	if c.attempts < 1 {
		c.attempts = 1
	}
	c.dialogue = confirm.New(c.settings.AutoConfirm)
	c.shadow = oracle.NewShadow(board.NewPosition())
	c.oracle = c.shadow
	c.sync = movelist.New(
		movelist.WithDebounce(c.debounce),
		movelist.WithOnSynced(c.onSynced),
	)
	return c
}

// Tab returns the tab identifier.
func (c *Controller) Tab() string { return c.tab }

// Run drives the controller until ctx is cancelled. It must be called
// exactly once.
func (c *Controller) Run(ctx context.Context) error {
	defer c.once.Do(func() { close(c.done) })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.sync.Run(gctx)
	})
	g.Go(func() error {
		defer c.stopOnce.Do(func() { close(c.stopping) })
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case fn := <-c.inbox:
				fn(gctx)
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// post queues fn for the controller goroutine.
func (c *Controller) post(ctx context.Context, fn task) error {
	select {
	case c.inbox <- fn:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the controller goroutine and waits for it to finish. Once
// posted, fn always runs to completion or not at all, so callers may read
// the variables it writes.
func (c *Controller) call(ctx context.Context, fn task) error {
	finished := make(chan struct{})
	if err := c.post(ctx, func(ctx context.Context) {
		defer close(finished)
		fn(ctx)
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-c.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// ── Inputs ──────────────────────────────────────────────────────────────────

// Submit queues t without waiting for it to be processed.
func (c *Controller) Submit(ctx context.Context, t types.Transcript) error {
	return c.post(ctx, func(ctx context.Context) {
		c.process(ctx, t)
	})
}

// HandleTranscript processes t in order with every other input and returns
// what happened.
func (c *Controller) HandleTranscript(ctx context.Context, t types.Transcript) (Result, error) {
	out := make(chan Result, 1)
	if err := c.post(ctx, func(ctx context.Context) {
		out <- c.process(ctx, t)
	}); err != nil {
		return Result{}, err
	}
	select {
	case res := <-out:
		return res, nil
	case <-c.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// HandleMoveList feeds the rendered move list of the host page to the
// synchronizer. force resyncs even if the number of moves is unchanged.
func (c *Controller) HandleMoveList(text string, force bool) {
	c.sync.Observe(movelist.Snapshot{Text: text, Force: force})
}

// HandleMoveEvent records a move made on the host page, by the opponent or
// with the mouse.
func (c *Controller) HandleMoveEvent(ctx context.Context, ev types.MoveEvent) error {
	return c.post(ctx, func(ctx context.Context) {
		c.followMove(ev)
	})
}

// HandleFEN updates the rules-engine oracle with a position read from the
// host page. It is a no-op for the other oracles.
func (c *Controller) HandleFEN(ctx context.Context, fen string) error {
	return c.post(ctx, func(ctx context.Context) {
		g, ok := c.currentOracle().(*oracle.Game)
		if !ok {
			return
		}
		if err := g.SetFEN(fen); err != nil {
			slog.Warn("controller: ignoring bad FEN", "tab", c.tab, "fen", fen, "err", err)
		}
	})
}

// SetCapabilities probes for the most authoritative oracle the tab offers.
// link may be nil.
func (c *Controller) SetCapabilities(ctx context.Context, caps oracle.Capabilities, link oracle.HostLink) error {
	return c.call(ctx, func(ctx context.Context) {
		o := oracle.Probe(ctx, caps, link, c.shadow)
		c.mu.Lock()
		c.oracle = o
		c.mu.Unlock()
		slog.Info("controller: oracle selected", "tab", c.tab, "oracle", o.Name())
	})
}

// ApplySettings installs s. Auto-confirm takes effect for the next resolved
// move; disabling speech cancels anything being spoken.
func (c *Controller) ApplySettings(ctx context.Context, s Settings) error {
	return c.post(ctx, func(ctx context.Context) {
		c.mu.Lock()
		old := c.settings
		c.settings = s
		hooks := append([]func(Settings){}, c.onSettings...)
		c.mu.Unlock()

		c.dialogue.SetAutoConfirm(s.AutoConfirm)
		if old.EnableTTS && !s.EnableTTS {
			if err := c.speaker.Cancel(ctx); err != nil {
				slog.Debug("controller: cancel speech", "tab", c.tab, "err", err)
			}
		}
		for _, fn := range hooks {
			fn(s)
		}
	})
}

// OnSettings registers fn to be called on the controller goroutine after
// every settings change.
func (c *Controller) OnSettings(fn func(Settings)) {
	c.mu.Lock()
	c.onSettings = append(c.onSettings, fn)
	c.mu.Unlock()
}

// Reset discards a pending confirmation. The recognition session calls it
// after an inactivity restart.
func (c *Controller) Reset(ctx context.Context) error {
	return c.post(ctx, func(ctx context.Context) {
		if c.dialogue.Expire() {
			c.setStatus("confirmation expired")
		}
	})
}

// ── Queries ─────────────────────────────────────────────────────────────────

// View is a read-only snapshot of the session.
type View struct {
	Tab      string   `json:"tab"`
	Oracle   string   `json:"oracle"`
	Turn     string   `json:"turn"`
	FEN      string   `json:"fen"`
	Board    string   `json:"board"`
	Dialogue string   `json:"dialogue"`
	Pending  string   `json:"pending,omitempty"`
	Status   string   `json:"status"`
	Settings Settings `json:"settings"`
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot(ctx context.Context) (View, error) {
	var v View
	err := c.call(ctx, func(ctx context.Context) {
		o := c.currentOracle()
		pos := c.shadow.Position()
		v = View{
			Tab:      c.tab,
			Oracle:   o.Name(),
			Turn:     o.Turn().String(),
			Board:    pos.String(),
			FEN:      pos.FEN(),
			Dialogue: c.dialogue.State().String(),
			Status:   c.Status(),
			Settings: c.Settings(),
		}
		if g, ok := o.(*oracle.Game); ok {
			v.FEN = g.FEN()
		}
		if m := c.dialogue.Pending(); m != nil {
			v.Pending = m.String()
		}
	})
	return v, err
}

// LegalMoves asks the current oracle for the legal moves of the side to move.
func (c *Controller) LegalMoves(ctx context.Context) ([]types.LegalMove, error) {
	var (
		moves []types.LegalMove
		lerr  error
	)
	err := c.call(ctx, func(ctx context.Context) {
		moves, lerr = c.currentOracle().LegalMoves(ctx)
	})
	if err != nil {
		return nil, err
	}
	if lerr != nil {
		return nil, fmt.Errorf("controller: legal moves: %w", lerr)
	}
	return moves, nil
}

// History returns up to limit journaled utterances of this tab.
func (c *Controller) History(ctx context.Context, limit int) ([]journal.Entry, error) {
	if c.journal == nil {
		return nil, nil
	}
	return c.journal.Recent(ctx, c.tab, limit)
}

// Settings returns the current settings.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Status returns the last status line.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// OracleName returns the name of the oracle in use.
func (c *Controller) OracleName() string {
	return c.currentOracle().Name()
}

func (c *Controller) currentOracle() oracle.Oracle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.oracle
}

// ── Outputs ─────────────────────────────────────────────────────────────────

func (c *Controller) setStatus(text string) {
	c.mu.Lock()
	c.status = text
	fn := c.onStatus
	c.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

// say shows text and, when enabled, speaks spoken.
func (c *Controller) say(ctx context.Context, text, spoken string) {
	c.setStatus(text)
	if spoken == "" || !c.Settings().EnableTTS {
		return
	}
	if err := c.speaker.Speak(ctx, spoken); err != nil {
		slog.Warn("controller: speak failed", "tab", c.tab, "err", err)
	}
}

// ── Move list ───────────────────────────────────────────────────────────────

// onSynced runs on the synchronizer goroutine; it hands the report to the
// controller goroutine.
func (c *Controller) onSynced(rep movelist.Report) {
	fn := func(ctx context.Context) { c.applyReport(ctx, rep) }
	select {
	case c.inbox <- fn:
	case <-c.stopping:
	case <-c.done:
	}
}

func (c *Controller) applyReport(ctx context.Context, rep movelist.Report) {
	c.metrics.RecordResync(ctx, rep.Skipped)
	if rep.Skipped > 0 {
		slog.Debug("controller: move list replay skipped tokens",
			"tab", c.tab,
			"skipped", rep.SkippedTokens,
		)
	}
	c.shadow.Sync(rep.Position, rep.Turn)
	if c.dialogue.Expire() {
		c.setStatus("position changed, pending move discarded")
	}
}

// followMove forwards a host move to oracles that track the game on their
// own. The shadow board follows the move list instead.
func (c *Controller) followMove(ev types.MoveEvent) {
	san := cleanSAN(ev.SAN)
	if san == "" {
		return
	}
	if c.echo != "" && san == c.echo {
		c.echo = ""
		return
	}
	o := c.currentOracle()
	if o == oracle.Oracle(c.shadow) {
		return
	}
	f, ok := o.(oracle.Follower)
	if !ok {
		return
	}
	if err := f.ApplySAN(san); err != nil {
		slog.Warn("controller: could not follow host move", "tab", c.tab, "san", san, "err", err)
	}
}
