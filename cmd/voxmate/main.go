// Command voxmate is the voice-control service behind the voxmate browser
// extension.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.design/x/mainthread"

	"github.com/MrWong99/voxmate/internal/app"
	"github.com/MrWong99/voxmate/internal/config"
	"github.com/MrWong99/voxmate/internal/journal"
	"github.com/MrWong99/voxmate/internal/journal/postgres"
	"github.com/MrWong99/voxmate/internal/observe"
	"github.com/MrWong99/voxmate/internal/resilience"
	"github.com/MrWong99/voxmate/pkg/provider/stt"
	"github.com/MrWong99/voxmate/pkg/provider/stt/vosk"
)

var version = "dev"

// main hands the main OS thread to the hotkey package, which needs it on
// macOS.
func main() {
	code := 0
	mainthread.Init(func() { code = run() })
	os.Exit(code)
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "voxmate.yaml", "path to the YAML configuration file; empty runs with defaults")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("voxmate", version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxmate: config file %q not found, pass -config \"\" to run with defaults\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxmate: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(newLogger(os.Stderr, cfg.Server.LogFormat, level))

	slog.Info("voxmate starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelProviders, err := observe.InitProvider(observe.ProviderConfig{
		ServiceVersion:   version,
		TraceSampleRatio: cfg.Server.TraceSampleRatio,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	// ── Backends ──────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBackends(reg)

	backends, err := buildBackends(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to build backends", "err", err)
		return 1
	}
	if c, ok := backends.Offline.(io.Closer); ok {
		defer c.Close()
	}

	application, err := app.New(cfg, backends,
		app.WithMetrics(observe.DefaultMetrics()),
		app.WithLogLevel(level),
		app.WithVersion(version),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if *configPath != "" {
		w, err := config.NewWatcher(*configPath, func(_, next *config.Config) {
			application.ApplyConfig(ctx, next)
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	printStartupSummary(cfg, backends)

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := &config.Config{}
		config.ApplyDefaults(cfg)
		return cfg, nil
	}
	return config.Load(path)
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// registerBackends wires the built-in offline recognizer and journal stores
// into reg.
func registerBackends(reg *config.Registry) {
	reg.RegisterSTT(config.STTVosk, func(c config.STTConfig) (stt.Provider, error) {
		return vosk.New(c.ModelPath, vosk.WithSampleRate(c.SampleRate))
	})

	reg.RegisterJournal(config.JournalMemory, func(_ context.Context, c config.JournalConfig) (journal.Store, error) {
		return journal.NewMemStore(c.Capacity), nil
	})
	reg.RegisterJournal(config.JournalFile, func(_ context.Context, c config.JournalConfig) (journal.Store, error) {
		return journal.NewFileStore(c.Path), nil
	})
	reg.RegisterJournal(config.JournalPostgres, func(ctx context.Context, c config.JournalConfig) (journal.Store, error) {
		return postgres.NewStore(ctx, c.PostgresDSN)
	})
}

// buildBackends creates the configured offline recognizer and journal. An
// offline recognizer that fails to load is logged and skipped so tabs keep
// the browser's recognizer.
func buildBackends(ctx context.Context, cfg *config.Config, reg *config.Registry) (app.Backends, error) {
	var b app.Backends

	if cfg.STT.Offline != "" && cfg.STT.ModelPath != "" {
		p, err := reg.CreateSTT(cfg.STT)
		switch {
		case errors.Is(err, vosk.ErrModelUnavailable), errors.Is(err, config.ErrBackendNotRegistered):
			slog.Warn("offline recognizer unavailable, using the browser recognizer only",
				"backend", cfg.STT.Offline, "err", err)
		case err != nil:
			return b, fmt.Errorf("create offline recognizer %q: %w", cfg.STT.Offline, err)
		default:
			b.Offline = p
			slog.Info("offline recognizer loaded", "backend", cfg.STT.Offline, "model", cfg.STT.ModelPath)
		}
	}

	store, err := reg.CreateJournal(ctx, cfg.Journal)
	if err != nil {
		return b, fmt.Errorf("create journal %q: %w", cfg.Journal.Backend, err)
	}
	if cfg.Journal.Backend == config.JournalMemory {
		b.Journal = store
	} else {
		b.Journal = resilience.NewGuardedJournal(store, 0, resilience.CircuitBreakerConfig{
			Name: "journal",
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("journal circuit breaker", "name", name, "from", from, "to", to)
			},
		})
	}
	slog.Info("journal ready", "backend", cfg.Journal.Backend)
	return b, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

// printStartupSummary writes to stderr so stdout stays free for the MCP stdio
// transport.
func printStartupSummary(cfg *config.Config, b app.Backends) {
	offline := "(disabled)"
	if b.Offline != nil {
		offline = cfg.STT.Offline
	}
	mcp := "(disabled)"
	if cfg.MCP.Enabled {
		mcp = string(cfg.MCP.Transport)
	}
	desktop := "(disabled)"
	if cfg.Desktop.Enabled {
		desktop = cfg.Desktop.Hotkey
	}

	fmt.Fprintln(os.Stderr, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║          voxmate startup summary      ║")
	fmt.Fprintln(os.Stderr, "╠═══════════════════════════════════════╣")
	printRow("Listen addr", cfg.Server.ListenAddr)
	printRow("Offline STT", offline)
	printRow("Journal", string(cfg.Journal.Backend))
	printRow("MCP", mcp)
	printRow("Desktop PTT", desktop)
	printRow("Auto-confirm", fmt.Sprint(cfg.Defaults.AutoConfirm))
	fmt.Fprintln(os.Stderr, "╚═══════════════════════════════════════╝")
}

func printRow(name, value string) {
	if len(value) > 19 {
		value = value[:16] + "..."
	}
	fmt.Fprintf(os.Stderr, "║  %-14s  : %-19s ║\n", name, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
