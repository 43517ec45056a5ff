package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// KnownOfflineBackends lists the offline recognizer names shipped with
// voxmate. [Validate] warns about names outside this list since they may be
// registered by an embedding program.
var KnownOfflineBackends = []string{STTVosk}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates it and applies
// defaults. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	switch cfg.Server.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if r := cfg.Server.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("server.trace_sample_ratio %v must be between 0 and 1", r))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// STT
	offline := cfg.STT.Offline
	if offline == "" {
		offline = STTVosk
	}
	if !slices.Contains(KnownOfflineBackends, offline) {
		slog.Warn("unknown offline recognizer, may be a typo or third-party backend",
			"name", offline,
			"known", KnownOfflineBackends,
		)
	}
	if cfg.STT.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("stt.sample_rate %d must not be negative", cfg.STT.SampleRate))
	}
	if offline == STTVosk && cfg.STT.ModelPath == "" {
		if cfg.Desktop.Enabled {
			errs = append(errs, errors.New("desktop capture requires stt.model_path for the vosk recognizer"))
		} else if cfg.Defaults.UseVosk {
			slog.Warn("defaults.use_vosk is set but stt.model_path is empty; tabs will fall back to the browser recognizer")
		}
	}

	// Timings
	if cfg.Recognition.RestartPause < 0 {
		errs = append(errs, fmt.Errorf("recognition.restart_pause %s must not be negative", cfg.Recognition.RestartPause))
	}
	if cfg.Recognition.Inactivity < 0 {
		errs = append(errs, fmt.Errorf("recognition.inactivity %s must not be negative", cfg.Recognition.Inactivity))
	}
	if cfg.Recognition.StartTimeout < 0 {
		errs = append(errs, fmt.Errorf("recognition.start_timeout %s must not be negative", cfg.Recognition.StartTimeout))
	}
	if cfg.Recognition.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("recognition.max_retries %d must not be negative", cfg.Recognition.MaxRetries))
	}
	if cfg.Controller.ExecTimeout < 0 {
		errs = append(errs, fmt.Errorf("controller.exec_timeout %s must not be negative", cfg.Controller.ExecTimeout))
	}
	if cfg.Controller.ExecAttempts < 0 {
		errs = append(errs, fmt.Errorf("controller.exec_attempts %d must not be negative", cfg.Controller.ExecAttempts))
	}
	if cfg.Controller.MoveListDebounce < 0 {
		errs = append(errs, fmt.Errorf("controller.movelist_debounce %s must not be negative", cfg.Controller.MoveListDebounce))
	}

	// Journal
	if cfg.Journal.Backend != "" && !cfg.Journal.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("journal.backend %q is invalid; valid values: memory, file, postgres", cfg.Journal.Backend))
	}
	if cfg.Journal.Backend == JournalPostgres && cfg.Journal.PostgresDSN == "" {
		errs = append(errs, errors.New("journal.postgres_dsn is required when backend is postgres"))
	}
	if cfg.Journal.Capacity < 0 {
		errs = append(errs, fmt.Errorf("journal.capacity %d must not be negative", cfg.Journal.Capacity))
	}

	// MCP
	if cfg.MCP.Transport != "" && !cfg.MCP.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("mcp.transport %q is invalid; valid values: stdio, streamable-http", cfg.MCP.Transport))
	}
	if cfg.MCP.Path != "" && cfg.MCP.Path[0] != '/' {
		errs = append(errs, fmt.Errorf("mcp.path %q must start with /", cfg.MCP.Path))
	}

	return errors.Join(errs...)
}
