package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only the log level and the default tab settings are applied live; every
// other changed section is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DefaultsChanged is true when the settings given to newly connected
	// tabs changed. Tabs already connected keep the settings their
	// extension pushed.
	DefaultsChanged bool

	// RestartRequired names the sections whose changes take effect only
	// after a restart, e.g. "server.listen_addr" or "journal".
	RestartRequired []string
}

// Changed reports whether d carries any change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.DefaultsChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Defaults != new.Defaults {
		d.DefaultsChanged = true
	}

	restart := func(name string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, name)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("server.log_format", old.Server.LogFormat != new.Server.LogFormat)
	restart("server.allowed_origins", !slices.Equal(old.Server.AllowedOrigins, new.Server.AllowedOrigins))
	restart("server.tls", !tlsEqual(old.Server.TLS, new.Server.TLS))
	restart("stt", old.STT != new.STT)
	restart("recognition", old.Recognition != new.Recognition)
	restart("controller", old.Controller != new.Controller)
	restart("journal", old.Journal != new.Journal)
	restart("mcp", old.MCP != new.MCP)
	restart("desktop", old.Desktop != new.Desktop)

	return d
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
