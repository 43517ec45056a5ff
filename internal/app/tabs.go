package app

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxmate/internal/bridge"
	"github.com/MrWong99/voxmate/internal/config"
	"github.com/MrWong99/voxmate/internal/controller"
	"github.com/MrWong99/voxmate/internal/journal"
	"github.com/MrWong99/voxmate/internal/mcpserver"
	"github.com/MrWong99/voxmate/internal/observe"
	"github.com/MrWong99/voxmate/internal/oracle"
	"github.com/MrWong99/voxmate/internal/recognition"
	"github.com/MrWong99/voxmate/internal/resilience"
	"github.com/MrWong99/voxmate/pkg/audio"
	"github.com/MrWong99/voxmate/pkg/provider/stt"
	"github.com/MrWong99/voxmate/pkg/types"
)

// statusTimeout bounds a status-line push to the extension.
const statusTimeout = time.Second

var _ mcpserver.Sessions = (*TabManager)(nil)

// TabManagerConfig holds the dependencies of a [TabManager].
type TabManagerConfig struct {
	Config   *config.Config
	Offline  stt.Provider
	Journal  journal.Store
	Metrics  *observe.Metrics
	Defaults controller.Settings
}

// TabManager owns one session per connected browser tab. Its Connect method
// is the bridge's [bridge.ConnectFunc]. All exported methods are safe for
// concurrent use.
type TabManager struct {
	cfg     *config.Config
	offline stt.Provider
	journal journal.Store
	metrics *observe.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	tabs     map[string]*tabSession
	defaults controller.Settings
}

// NewTabManager creates an empty [TabManager].
func NewTabManager(cfg TabManagerConfig) *TabManager {
	if cfg.Config == nil {
		cfg.Config = &config.Config{}
		config.ApplyDefaults(cfg.Config)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.NewMemStore(cfg.Config.Journal.Capacity)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TabManager{
		cfg:      cfg.Config,
		offline:  cfg.Offline,
		journal:  cfg.Journal,
		metrics:  cfg.Metrics,
		ctx:      ctx,
		cancel:   cancel,
		tabs:     make(map[string]*tabSession),
		defaults: cfg.Defaults,
	}
}

// Connect starts a session for the tab behind c. A tab reconnecting under
// the same id replaces its previous session.
func (m *TabManager) Connect(_ context.Context, c *bridge.Conn) (bridge.Handler, error) {
	if m.ctx.Err() != nil {
		return nil, errors.New("app: shutting down")
	}
	hello := c.Hello()

	m.mu.Lock()
	prev := m.tabs[c.Tab()]
	settings := m.defaults
	m.mu.Unlock()
	if prev != nil {
		slog.Info("app: tab reconnected, replacing session", "tab", c.Tab())
		prev.stop()
	}

	t := newTabSession(m, c, hello)
	if hello.Settings != nil {
		settings = *hello.Settings
		t.explicit.Store(true)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	t.cancel = cancel
	t.ctrl = controller.New(c.Tab(), m.controllerOptions(ctx, c, settings)...)
	t.ctrl.OnSettings(t.notifySettings)

	m.mu.Lock()
	m.tabs[c.Tab()] = t
	m.mu.Unlock()

	go t.run(ctx)
	return t, nil
}

func (m *TabManager) controllerOptions(ctx context.Context, c *bridge.Conn, s controller.Settings) []controller.Option {
	cc := m.cfg.Controller
	opts := []controller.Option{
		controller.WithExecutor(c),
		controller.WithSpeaker(c),
		controller.WithJournal(m.journal),
		controller.WithMetrics(m.metrics),
		controller.WithSettings(s),
		controller.WithStatus(func(text string) {
			sctx, cancel := context.WithTimeout(ctx, statusTimeout)
			defer cancel()
			if err := c.Status(sctx, text); err != nil && !errors.Is(err, bridge.ErrClosed) {
				slog.Debug("app: status push failed", "tab", c.Tab(), "err", err)
			}
		}),
	}
	if cc.ExecTimeout > 0 {
		opts = append(opts, controller.WithExecTimeout(cc.ExecTimeout))
	}
	if cc.ExecAttempts > 0 {
		opts = append(opts, controller.WithExecAttempts(cc.ExecAttempts))
	}
	if cc.MoveListDebounce > 0 {
		opts = append(opts, controller.WithDebounce(cc.MoveListDebounce))
	}
	return opts
}

// Controller returns the controller of tab.
func (m *TabManager) Controller(tab string) (*controller.Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tabs[tab]
	if !ok {
		return nil, false
	}
	return t.ctrl, true
}

// Tabs lists the connected tabs in sorted order.
func (m *TabManager) Tabs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	tabs := make([]string, 0, len(m.tabs))
	for id := range m.tabs {
		tabs = append(tabs, id)
	}
	slices.Sort(tabs)
	return tabs
}

// SetDefaults changes the settings given to new tabs and pushes them to the
// tabs whose extension never sent its own.
func (m *TabManager) SetDefaults(ctx context.Context, s controller.Settings) {
	m.mu.Lock()
	m.defaults = s
	var targets []*tabSession
	for _, t := range m.tabs {
		if !t.explicit.Load() {
			targets = append(targets, t)
		}
	}
	m.mu.Unlock()

	for _, t := range targets {
		if err := t.ctrl.ApplySettings(ctx, s); err != nil {
			slog.Warn("app: apply default settings", "tab", t.id, "err", err)
		}
	}
}

// Close stops every tab session and refuses new ones.
func (m *TabManager) Close() error {
	m.cancel()
	m.mu.Lock()
	tabs := make([]*tabSession, 0, len(m.tabs))
	for _, t := range m.tabs {
		tabs = append(tabs, t)
	}
	m.mu.Unlock()
	for _, t := range tabs {
		t.stop()
	}
	return nil
}

func (m *TabManager) remove(t *tabSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tabs[t.id] == t {
		delete(m.tabs, t.id)
	}
}

// providerFor picks the recognizer for s. The offline recognizer is used
// when the user asked for it, with the browser's one behind it when
// fallback is configured.
func (m *TabManager) providerFor(s controller.Settings, native stt.Provider) (stt.Provider, string) {
	switch {
	case s.UseVosk && m.offline != nil:
		if native != nil && m.cfg.STT.FallbackToNative {
			fb := resilience.NewSTTFallback(m.offline, config.STTVosk, resilience.FallbackConfig{})
			fb.AddFallback("native", native)
			return fb, config.STTVosk + "+native"
		}
		return m.offline, config.STTVosk
	case native != nil:
		return native, "native"
	case m.offline != nil:
		return m.offline, config.STTVosk
	}
	return nil, "none"
}

// ── Tab session ─────────────────────────────────────────────────────────────

var _ bridge.Handler = (*tabSession)(nil)

// tabSession is the live state of one tab: its controller and the
// recognition session feeding it.
type tabSession struct {
	id     string
	mgr    *TabManager
	conn   *bridge.Conn
	hello  bridge.Hello
	ctrl   *controller.Controller
	conv   audio.FormatConverter
	cancel context.CancelFunc
	done   chan struct{}

	// settings carries the latest settings to the recognition supervisor.
	settings chan controller.Settings

	// explicit is set once the extension has sent settings of its own.
	explicit atomic.Bool

	mu  sync.Mutex
	rec *recRunner
}

func newTabSession(m *TabManager, c *bridge.Conn, hello bridge.Hello) *tabSession {
	return &tabSession{
		id:       c.Tab(),
		mgr:      m,
		conn:     c,
		hello:    hello,
		conv:     audio.FormatConverter{Target: audio.RecognizerFormat},
		done:     make(chan struct{}),
		settings: make(chan controller.Settings, 1),
	}
}

func (t *tabSession) run(ctx context.Context) {
	defer close(t.done)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.ctrl.Run(gctx) })
	g.Go(func() error {
		var link oracle.HostLink
		if t.hello.Capabilities.HostGame {
			link = t.conn
		}
		if err := t.ctrl.SetCapabilities(gctx, t.hello.Capabilities.Oracle(), link); err != nil {
			return err
		}
		t.superviseRecognition(gctx)
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("app: tab session ended", "tab", t.id, "err", err)
	}
}

func (t *tabSession) stop() {
	t.cancel()
	<-t.done
	t.mgr.remove(t)
}

// notifySettings runs on the controller goroutine and keeps only the newest
// settings in the channel.
func (t *tabSession) notifySettings(s controller.Settings) {
	select {
	case <-t.settings:
	default:
	}
	select {
	case t.settings <- s:
	default:
	}
}

// superviseRecognition rebuilds the recognition session when the selected
// backend changes and starts or stops it with the voice toggle.
func (t *tabSession) superviseRecognition(ctx context.Context) {
	var native stt.Provider
	if t.hello.Capabilities.NativeSpeech {
		native = t.conn
	}

	apply := func(s controller.Settings) {
		provider, name := t.mgr.providerFor(s, native)

		t.mu.Lock()
		cur := t.rec
		t.mu.Unlock()

		if cur == nil || cur.backend != name {
			if cur != nil {
				cur.close()
			}
			cur = t.startRecognition(ctx, provider, name)
			t.mu.Lock()
			t.rec = cur
			t.mu.Unlock()
		}

		var err error
		if s.EnableVoice {
			err = cur.sess.Start(ctx)
		} else {
			err = cur.sess.Stop(ctx)
		}
		if errors.Is(err, recognition.ErrNoSpeechCapability) {
			t.status(ctx, "voice input unavailable: no speech recognizer")
		} else if err != nil && ctx.Err() == nil {
			slog.Warn("app: recognition toggle failed", "tab", t.id, "err", err)
		}
	}

	apply(t.ctrl.Settings())
	for {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			cur := t.rec
			t.rec = nil
			t.mu.Unlock()
			if cur != nil {
				cur.close()
			}
			return
		case s := <-t.settings:
			apply(s)
		}
	}
}

func (t *tabSession) startRecognition(ctx context.Context, provider stt.Provider, backend string) *recRunner {
	rc := t.mgr.cfg.Recognition
	metrics := t.mgr.metrics
	opts := []recognition.Option{
		recognition.WithStreamConfig(stt.StreamConfig{
			SampleRate: audio.RecognizerFormat.SampleRate,
			Channels:   audio.RecognizerFormat.Channels,
			Language:   t.mgr.cfg.STT.Language,
			Continuous: true,
		}),
		recognition.WithOnStateChange(func(from, to recognition.State) {
			if to == recognition.AwaitingRestart {
				metrics.RecordRecognitionRestart(ctx, restartReason(from))
			}
			slog.Debug("app: recognition state", "tab", t.id, "backend", backend, "from", from, "to", to)
		}),
		recognition.WithOnReset(func() {
			if err := t.ctrl.Reset(ctx); err != nil && ctx.Err() == nil {
				slog.Debug("app: reset after inactivity", "tab", t.id, "err", err)
			}
		}),
		recognition.WithOnError(func(err error) {
			metrics.RecordProviderError(ctx, backend, "start")
			slog.Warn("app: recognizer failed to start", "tab", t.id, "backend", backend, "err", err)
		}),
	}
	opts = append(opts, recognitionOptions(rc)...)

	slog.Info("app: recognition backend selected", "tab", t.id, "backend", backend)
	return startRunner(ctx, recognition.New(provider, opts...), backend, t.ctrl)
}

// recognitionOptions maps the configured timings onto session options. Zero
// values keep the session defaults.
func recognitionOptions(rc config.RecognitionConfig) []recognition.Option {
	var opts []recognition.Option
	if rc.RestartPause > 0 {
		opts = append(opts, recognition.WithRestartPause(rc.RestartPause))
	}
	if rc.Inactivity > 0 {
		opts = append(opts, recognition.WithInactivity(rc.Inactivity))
	}
	if rc.MaxRetries > 0 {
		opts = append(opts, recognition.WithMaxRetries(rc.MaxRetries))
	}
	if rc.StartTimeout > 0 {
		opts = append(opts, recognition.WithStartTimeout(rc.StartTimeout))
	}
	return opts
}

func (t *tabSession) status(ctx context.Context, text string) {
	sctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()
	if err := t.conn.Status(sctx, text); err != nil {
		slog.Debug("app: status push failed", "tab", t.id, "err", err)
	}
}

// ── bridge.Handler ──────────────────────────────────────────────────────────

// HandleAudio converts microphone audio from the page and feeds it to the
// active recognizer.
func (t *tabSession) HandleAudio(_ context.Context, frame types.AudioFrame) {
	t.mu.Lock()
	cur := t.rec
	t.mu.Unlock()
	if cur == nil {
		return
	}
	f := t.conv.Convert(frame)
	if len(f.Data) == 0 {
		return
	}
	if err := cur.sess.SendAudio(f.Data); err != nil {
		slog.Debug("app: audio dropped", "tab", t.id, "err", err)
	}
}

func (t *tabSession) HandleMoveList(_ context.Context, m bridge.MoveListMsg) {
	t.ctrl.HandleMoveList(m.Text, m.Force)
}

func (t *tabSession) HandleMoveEvent(ctx context.Context, ev types.MoveEvent) {
	if err := t.ctrl.HandleMoveEvent(ctx, ev); err != nil {
		slog.Debug("app: move event dropped", "tab", t.id, "err", err)
	}
}

func (t *tabSession) HandleFEN(ctx context.Context, fen string) {
	if err := t.ctrl.HandleFEN(ctx, fen); err != nil {
		slog.Debug("app: fen dropped", "tab", t.id, "err", err)
	}
}

func (t *tabSession) HandleSettings(ctx context.Context, s controller.Settings) {
	t.explicit.Store(true)
	if err := t.ctrl.ApplySettings(ctx, s); err != nil {
		slog.Debug("app: settings dropped", "tab", t.id, "err", err)
	}
}

// Close ends the session after the extension went away.
func (t *tabSession) Close() error {
	t.stop()
	return nil
}

// ── Recognition runner ──────────────────────────────────────────────────────

// recRunner runs a recognition session and forwards its transcripts to a
// controller.
type recRunner struct {
	backend string
	sess    *recognition.Session
	cancel  context.CancelFunc
	done    chan struct{}
}

func startRunner(ctx context.Context, sess *recognition.Session, backend string, ctrl *controller.Controller) *recRunner {
	ctx, cancel := context.WithCancel(ctx)
	r := &recRunner{backend: backend, sess: sess, cancel: cancel, done: make(chan struct{})}

	go func() {
		_ = sess.Run(ctx)
	}()
	go func() {
		defer close(r.done)
		for tr := range sess.Results() {
			if err := ctrl.Submit(ctx, tr); err != nil {
				if ctx.Err() == nil {
					slog.Debug("app: transcript dropped", "tab", ctrl.Tab(), "err", err)
				}
			}
		}
	}()
	return r
}

// close stops the session and waits until its results are drained.
func (r *recRunner) close() {
	r.cancel()
	<-r.done
}

func restartReason(from recognition.State) string {
	if from == recognition.Starting {
		return "start_failed"
	}
	return "ended"
}
