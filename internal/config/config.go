// Package config provides the configuration schema, loader, hot-reload
// watcher and backend registry for the voxmate service.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/voxmate/internal/controller"
)

// LogLevel controls log verbosity for the voxmate server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a slog level. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// JournalBackend selects where utterance journal entries are kept.
type JournalBackend string

const (
	JournalMemory   JournalBackend = "memory"
	JournalFile     JournalBackend = "file"
	JournalPostgres JournalBackend = "postgres"
)

// IsValid reports whether b is a recognised journal backend.
func (b JournalBackend) IsValid() bool {
	switch b {
	case JournalMemory, JournalFile, JournalPostgres:
		return true
	}
	return false
}

// MCPTransport selects how the MCP server is exposed.
type MCPTransport string

const (
	// MCPStdio serves MCP over the process's stdin and stdout.
	MCPStdio MCPTransport = "stdio"

	// MCPStreamableHTTP mounts the MCP endpoint on the HTTP listener.
	MCPStreamableHTTP MCPTransport = "streamable-http"
)

// IsValid reports whether t is a recognised MCP transport.
func (t MCPTransport) IsValid() bool {
	return t == MCPStdio || t == MCPStreamableHTTP
}

// STTVosk is the registry name of the offline Vosk recognizer.
const STTVosk = "vosk"

// Config is the root configuration structure for voxmate.
type Config struct {
	Server      ServerConfig        `yaml:"server"`
	STT         STTConfig           `yaml:"stt"`
	Recognition RecognitionConfig   `yaml:"recognition"`
	Controller  ControllerConfig    `yaml:"controller"`
	Defaults    controller.Settings `yaml:"defaults"`
	Journal     JournalConfig       `yaml:"journal"`
	MCP         MCPConfig           `yaml:"mcp"`
	Desktop     DesktopConfig       `yaml:"desktop"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for the websocket bridge, metrics and
	// health endpoints (e.g., ":8765").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Reloadable at runtime.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat is "text" or "json". Defaults to text.
	LogFormat string `yaml:"log_format"`

	// AllowedOrigins are websocket origin patterns accepted besides
	// same-origin requests, e.g. "chrome-extension://*".
	AllowedOrigins []string `yaml:"allowed_origins"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`

	// TraceSampleRatio is the fraction of utterance traces kept. Zero keeps
	// all of them.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

// TLSConfig holds paths to TLS certificate and key files.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// STTConfig selects and configures the speech recognition backend.
type STTConfig struct {
	// Offline names the registered backend used by tabs that enable the
	// offline recognizer. Other tabs use the browser's recognizer.
	Offline string `yaml:"offline"`

	// ModelPath is the directory of the Vosk model.
	ModelPath string `yaml:"model_path"`

	// SampleRate of the PCM the extension or microphone sends.
	SampleRate int `yaml:"sample_rate"`

	// Language is a BCP-47 tag passed to the recognizer.
	Language string `yaml:"language"`

	// FallbackToNative switches a tab to the browser recognizer while the
	// offline backend keeps failing.
	FallbackToNative bool `yaml:"fallback_to_native"`
}

// RecognitionConfig tunes the recognition session state machine.
type RecognitionConfig struct {
	RestartPause time.Duration `yaml:"restart_pause"`
	Inactivity   time.Duration `yaml:"inactivity"`
	MaxRetries   int           `yaml:"max_retries"`

	// StartTimeout bounds how long a recognizer may take to confirm that
	// capture has begun.
	StartTimeout time.Duration `yaml:"start_timeout"`
}

// ControllerConfig tunes the per-tab utterance pipeline.
type ControllerConfig struct {
	// ExecTimeout bounds one input attempt of the extension executor.
	ExecTimeout time.Duration `yaml:"exec_timeout"`

	// ExecAttempts is the number of input methods tried before giving up.
	ExecAttempts int `yaml:"exec_attempts"`

	// MoveListDebounce coalesces bursts of move-list updates.
	MoveListDebounce time.Duration `yaml:"movelist_debounce"`
}

// JournalConfig selects the utterance journal store.
type JournalConfig struct {
	Backend JournalBackend `yaml:"backend"`

	// Path is the JSON-lines file used by the file backend.
	Path string `yaml:"path"`

	// PostgresDSN is the connection string used by the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Capacity bounds the memory backend.
	Capacity int `yaml:"capacity"`
}

// MCPConfig configures the Model Context Protocol server.
type MCPConfig struct {
	Enabled   bool         `yaml:"enabled"`
	Transport MCPTransport `yaml:"transport"`

	// Path is the HTTP path of the streamable-http endpoint.
	Path string `yaml:"path"`
}

// DesktopConfig enables local microphone capture with a push-to-talk
// hotkey, for setups where the extension cannot record audio.
type DesktopConfig struct {
	Enabled bool `yaml:"enabled"`

	// Hotkey toggles listening, e.g. "ctrl+shift+m".
	Hotkey string `yaml:"hotkey"`

	// Tab routes captured speech to this tab. Empty picks the most recently
	// connected one.
	Tab string `yaml:"tab"`
}

// Default values applied by [ApplyDefaults].
const (
	DefaultListenAddr  = "127.0.0.1:8765"
	DefaultSampleRate  = 16000
	DefaultLanguage    = "en-US"
	DefaultJournalPath = "voxmate-journal.jsonl"
	DefaultMCPPath     = "/mcp"
	DefaultHotkey      = "ctrl+shift+m"
)

// ApplyDefaults fills unset fields of cfg with their defaults.
// Durations left at zero are resolved by the consuming packages.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = "text"
	}
	if cfg.STT.Offline == "" {
		cfg.STT.Offline = STTVosk
	}
	if cfg.STT.SampleRate == 0 {
		cfg.STT.SampleRate = DefaultSampleRate
	}
	if cfg.STT.Language == "" {
		cfg.STT.Language = DefaultLanguage
	}
	if cfg.Journal.Backend == "" {
		cfg.Journal.Backend = JournalMemory
	}
	if cfg.Journal.Backend == JournalFile && cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath
	}
	if cfg.MCP.Enabled && cfg.MCP.Transport == "" {
		cfg.MCP.Transport = MCPStreamableHTTP
	}
	if cfg.MCP.Path == "" {
		cfg.MCP.Path = DefaultMCPPath
	}
	if cfg.Desktop.Enabled && cfg.Desktop.Hotkey == "" {
		cfg.Desktop.Hotkey = DefaultHotkey
	}
}
