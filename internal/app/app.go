// Package app wires the voxmate subsystems into a running service.
//
// The App owns the full lifecycle: New builds the tab manager, the extension
// bridge, the MCP server and the health endpoints; Run serves HTTP (and
// optionally MCP on stdio and desktop capture) until the context ends; and
// Shutdown tears everything down in order.
//
// Backends that talk to the outside world (offline recognizer, journal,
// microphone) are passed in through [Backends] so tests can inject doubles.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxmate/internal/bridge"
	"github.com/MrWong99/voxmate/internal/config"
	"github.com/MrWong99/voxmate/internal/health"
	"github.com/MrWong99/voxmate/internal/journal"
	"github.com/MrWong99/voxmate/internal/mcpserver"
	"github.com/MrWong99/voxmate/internal/observe"
	"github.com/MrWong99/voxmate/pkg/audio"
	"github.com/MrWong99/voxmate/pkg/provider/stt"
)

// shutdownGrace bounds the HTTP server drain on shutdown.
const shutdownGrace = 5 * time.Second

// Backends holds the externally constructed dependencies. Nil means not
// configured: without Offline only the browser recognizer is used, without
// Journal an in-memory store is created, and without Microphone desktop
// mode opens the default capture device.
type Backends struct {
	Offline    stt.Provider
	Journal    journal.Store
	Microphone Microphone
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel hands the app the level variable of the process logger so
// config reloads can change it.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	backends Backends
	metrics  *observe.Metrics
	level    *slog.LevelVar
	version  string

	tabs    *TabManager
	bridge  *bridge.Server
	mcp     *mcpserver.Server
	health  *health.Handler
	desktop *Desktop
	handler http.Handler

	mu  sync.Mutex
	cur *config.Config

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// New builds an App from cfg. cfg must already have defaults applied.
func New(cfg *config.Config, backends Backends, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, cur: cfg, backends: backends, version: "dev"}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
		a.level.Set(cfg.Server.LogLevel.Level())
	}
	if a.backends.Journal == nil {
		a.backends.Journal = journal.NewMemStore(cfg.Journal.Capacity)
	}

	// ── 1. Tabs ──────────────────────────────────────────────────────────
	a.tabs = NewTabManager(TabManagerConfig{
		Config:   cfg,
		Offline:  a.backends.Offline,
		Journal:  a.backends.Journal,
		Metrics:  a.metrics,
		Defaults: cfg.Defaults,
	})
	a.closers = append(a.closers, a.tabs.Close, a.backends.Journal.Close)

	// ── 2. Extension bridge ──────────────────────────────────────────────
	a.bridge = bridge.NewServer(a.tabs.Connect,
		bridge.WithOriginPatterns(cfg.Server.AllowedOrigins...),
		bridge.WithMetrics(a.metrics),
	)

	// ── 3. MCP ───────────────────────────────────────────────────────────
	if cfg.MCP.Enabled {
		a.mcp = mcpserver.New(a.tabs, mcpserver.WithVersion(a.version))
	}

	// ── 4. Health ────────────────────────────────────────────────────────
	a.health = health.New()
	if p, ok := a.backends.Journal.(health.Pinger); ok {
		a.health.Add(health.PingCheck("journal", p))
	}
	if a.backends.Offline != nil && cfg.STT.ModelPath != "" {
		a.health.Add(health.PathCheck("vosk_model", cfg.STT.ModelPath))
	}

	// ── 5. Desktop capture ───────────────────────────────────────────────
	if cfg.Desktop.Enabled {
		mic := a.backends.Microphone
		if mic == nil {
			m := audio.NewMicrophone(audio.CaptureConfig{SampleRate: uint32(cfg.STT.SampleRate), Channels: 1})
			mic = m
		}
		d, err := NewDesktop(cfg.Desktop, mic, a.backends.Offline, a.tabs, recognitionOptions(cfg.Recognition)...)
		if err != nil {
			return nil, fmt.Errorf("app: desktop: %w", err)
		}
		a.desktop = d
	}

	a.handler = a.routes()
	return a, nil
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", a.bridge)
	mux.Handle("GET /metrics", promhttp.Handler())
	a.health.Register(mux)
	if a.mcp != nil && a.cfg.MCP.Transport == config.MCPStreamableHTTP {
		mux.Handle(a.cfg.MCP.Path, a.mcp.Handler())
	}
	return observe.Middleware(a.metrics)(mux)
}

// Handler returns the HTTP handler serving /ws, /metrics, the health
// endpoints and, when configured, the MCP endpoint.
func (a *App) Handler() http.Handler { return a.handler }

// Tabs returns the tab manager.
func (a *App) Tabs() *TabManager { return a.tabs }

// Run serves until ctx is cancelled. A failing listener, MCP stdio session
// or desktop capture ends Run with its error.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if a.mcp != nil && a.cfg.MCP.Transport == config.MCPStdio {
		g.Go(func() error { return a.mcp.RunStdio(gctx) })
	}
	if a.desktop != nil {
		g.Go(func() error { return a.desktop.Run(gctx) })
	}

	err := g.Wait()
	if ctx.Err() != nil && err == nil {
		return ctx.Err()
	}
	return err
}

// ApplyConfig applies a reloaded config: the log level and the default tab
// settings change live, everything else is logged as needing a restart.
// It is the config watcher's change callback.
func (a *App) ApplyConfig(ctx context.Context, next *config.Config) {
	a.mu.Lock()
	prev := a.cur
	a.cur = next
	a.mu.Unlock()

	d := config.Diff(prev, next)
	if !d.Changed() {
		return
	}
	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.DefaultsChanged {
		a.tabs.SetDefaults(ctx, next.Defaults)
		slog.Info("default tab settings changed",
			"auto_confirm", next.Defaults.AutoConfirm,
			"enable_tts", next.Defaults.EnableTTS,
			"use_vosk", next.Defaults.UseVosk,
			"enable_voice", next.Defaults.EnableVoice,
		)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart", "sections", d.RestartRequired)
	}
}

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, the remaining closers are skipped
// and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
