// ABOUTME: Configuration loading and parsing for savedsearch
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/savedsearch/internal/store"
)

// Config represents the complete savedsearch configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Remote    RemoteConfig    `yaml:"remote" toml:"remote"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
}

// StorageConfig names the two blobs the saved searches live in
type StorageConfig struct {
	OrderKey   string `yaml:"order_key" toml:"order_key"`
	MappingKey string `yaml:"mapping_key" toml:"mapping_key"`
}

// RemoteConfig holds the sync server connection settings
type RemoteConfig struct {
	URL        string `yaml:"url" toml:"url"`
	DeviceID   string `yaml:"device_id" toml:"device_id"`
	DedupeSize int    `yaml:"dedupe_size" toml:"dedupe_size"`

	RequestTimeout time.Duration `yaml:"-" toml:"-"`
	DedupeTTL      time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout" toml:"request_timeout"`
	DedupeTTLRaw      string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// ServerConfig holds the sync server listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"` // serve on :443 with Tailscale certs
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // text, json
}

const (
	defaultHTTPAddr       = "127.0.0.1:8420"
	defaultRequestTimeout = 10 * time.Second
	defaultDedupeTTL      = 5 * time.Minute
	defaultDedupeSize     = 1024
)

// Default returns a configuration that works out of the box with the
// database stored under dataDir.
func Default(dataDir string) *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:   filepath.Join(dataDir, "savedsearch.db"),
			Driver: store.DriverModernc,
		},
		Storage: StorageConfig{
			OrderKey:   store.DefaultOrderKey,
			MappingKey: store.DefaultMappingKey,
		},
		Remote: RemoteConfig{
			RequestTimeout: defaultRequestTimeout,
			DedupeTTL:      defaultDedupeTTL,
			DedupeSize:     defaultDedupeSize,
		},
		Server: ServerConfig{
			HTTPAddr: defaultHTTPAddr,
		},
		Tailscale: TailscaleConfig{
			Hostname: "savedsearch",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if isTOML(path) {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Write saves the configuration to path in the format its extension names.
// The file is created with owner-only permissions since it may hold an auth key.
func (c *Config) Write(path string) error {
	out := *c
	out.Remote.RequestTimeoutRaw = formatDuration(c.Remote.RequestTimeout)
	out.Remote.DedupeTTLRaw = formatDuration(c.Remote.DedupeTTL)

	var buf bytes.Buffer
	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(out); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	} else {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values a config file may leave out.
func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = store.DriverModernc
	}
	if cfg.Server.HTTPAddr == "" && !cfg.Tailscale.Enabled {
		cfg.Server.HTTPAddr = defaultHTTPAddr
	}
	if cfg.Remote.RequestTimeout == 0 {
		cfg.Remote.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Remote.DedupeTTL == 0 {
		cfg.Remote.DedupeTTL = defaultDedupeTTL
	}
	if cfg.Remote.DedupeSize == 0 {
		cfg.Remote.DedupeSize = defaultDedupeSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Database.Driver {
	case "", store.DriverModernc, store.DriverCGO:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", store.DriverModernc, store.DriverCGO, c.Database.Driver)
	}

	if c.Storage.OrderKey != "" && c.Storage.OrderKey == c.Storage.MappingKey {
		return fmt.Errorf("storage.order_key and storage.mapping_key must differ")
	}

	if c.Remote.URL != "" {
		u, err := url.Parse(c.Remote.URL)
		if err != nil {
			return fmt.Errorf("remote.url is not a valid URL: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("remote.url must use ws, wss, http or https scheme")
		}
	}
	if c.Remote.RequestTimeout < 0 || c.Remote.DedupeTTL < 0 {
		return fmt.Errorf("remote durations must not be negative")
	}
	if c.Remote.DedupeSize < 0 {
		return fmt.Errorf("remote.dedupe_size must not be negative")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Remote.RequestTimeoutRaw != "" {
		cfg.Remote.RequestTimeout, err = time.ParseDuration(cfg.Remote.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Remote.RequestTimeoutRaw, err)
		}
	}

	if cfg.Remote.DedupeTTLRaw != "" {
		cfg.Remote.DedupeTTL, err = time.ParseDuration(cfg.Remote.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_ttl %q: %w", cfg.Remote.DedupeTTLRaw, err)
		}
	}

	return nil
}
