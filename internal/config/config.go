// Package config loads the proxyd configuration from a TOML file.
//
// The file lives in the data directory by default and has three sections:
// [daemon] for process supervision and the PID file, [server] for the
// listener and the error page it sends, and [log]. Missing keys keep the
// values from [DefaultConfig].
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/proxyd/internal/atomicfile"
)

// CurrentVersion is the config schema version this build reads and writes.
const CurrentVersion = 1

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config is the top-level configuration.
type Config struct {
	// Version is the config schema version.
	Version int `toml:"version"`
	// Daemon holds process and PID file settings.
	Daemon DaemonConfig `toml:"daemon"`
	// Server holds listener and error page settings.
	Server ServerConfig `toml:"server"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// DaemonConfig holds process supervision settings.
type DaemonConfig struct {
	// Foreground keeps the process attached to its terminal and mirrors the
	// log to stderr.
	Foreground bool `toml:"foreground"`
	// PIDFile is the PID file path. Empty means proxyd.pid in the data directory.
	PIDFile string `toml:"pid_file,omitempty"`
	// AllowedPIDDirs restricts the PID file's directory to these glob patterns.
	// Empty allows any directory.
	AllowedPIDDirs []string `toml:"allowed_pid_dirs,omitempty"`
	// ReopenFallback permits reopening with truncate when in-place truncation
	// is unsupported. The reopen is not atomic with the identity check.
	ReopenFallback bool `toml:"reopen_fallback"`
	// OnTamper selects the reaction when the PID file is removed or
	// overwritten while running: "log" or "exit".
	OnTamper string `toml:"on_tamper"`
}

// ServerConfig holds listener and error page settings.
type ServerConfig struct {
	// Name identifies the server in the Server header and page footer.
	Name string `toml:"name"`
	// Listen is a TCP host:port, "unix:/path/to.sock", or on Windows a
	// named pipe such as `\\.\pipe\proxyd`.
	Listen string `toml:"listen"`
	// ErrorCode is the HTTP status sent to every client.
	ErrorCode int `toml:"error_code"`
	// ErrorReason is the status reason phrase. Empty uses the standard text.
	ErrorReason string `toml:"error_reason,omitempty"`
	// ErrorDetail is the explanation shown in the page body.
	ErrorDetail string `toml:"error_detail"`
	// ErrorHeading is the banner above the error text.
	ErrorHeading string `toml:"error_heading"`
	// WriteTimeoutSeconds bounds how long a client write may block.
	WriteTimeoutSeconds int `toml:"write_timeout_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fail).
	Level string `toml:"level"`
	// MaxSizeMB is the log file size in megabytes that triggers rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// WriteTimeout returns the configured client write timeout.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// ///////////////////////////////////////////////
// Defaults
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Daemon: DaemonConfig{
			OnTamper: "log",
		},
		Server: ServerConfig{
			Name:                "proxyd",
			Listen:              "127.0.0.1:8888",
			ErrorCode:           503,
			ErrorDetail:         "The proxy is not accepting requests.",
			ErrorHeading:        "Proxy Error!",
			WriteTimeoutSeconds: 10,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ExampleConfig returns the Config written to config.default.toml.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads the configuration at path over [DefaultConfig]. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML data over [DefaultConfig] and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse config: unknown keys: %s", strings.Join(keys, ", "))
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path as TOML using an atomic write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o600)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fail": true,
}

// Validate checks that all values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Version > CurrentVersion {
		return fmt.Errorf("config version %d is newer than supported version %d", c.Version, CurrentVersion)
	}

	for _, p := range c.Daemon.AllowedPIDDirs {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid daemon.allowed_pid_dirs pattern %q", p)
		}
	}

	switch c.Daemon.OnTamper {
	case "log", "exit":
	default:
		return fmt.Errorf("invalid daemon.on_tamper %q: must be log or exit", c.Daemon.OnTamper)
	}

	if strings.TrimSpace(c.Server.Name) == "" {
		return errors.New("server.name must not be empty")
	}
	if strings.ContainsAny(c.Server.Name, "/ \r\n") {
		return fmt.Errorf("invalid server.name %q: must not contain '/', spaces, or line breaks", c.Server.Name)
	}

	if c.Server.Listen == "" {
		return errors.New("server.listen must not be empty")
	}

	if c.Server.ErrorCode < 400 || c.Server.ErrorCode > 599 {
		return fmt.Errorf("server.error_code must be between 400 and 599, got %d", c.Server.ErrorCode)
	}

	if strings.ContainsAny(c.Server.ErrorReason, "\r\n") {
		return errors.New("server.error_reason must be a single line")
	}

	if c.Server.WriteTimeoutSeconds <= 0 {
		return fmt.Errorf("server.write_timeout_seconds must be > 0, got %d", c.Server.WriteTimeoutSeconds)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, error, or fail", c.Log.Level)
	}

	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	return nil
}
