package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete riskgate process configuration.
type Config struct {
	Store  StoreConfig  `json:"store" yaml:"store"`
	Audit  AuditConfig  `json:"audit" yaml:"audit"`
	Server ServerConfig `json:"server" yaml:"server"`
	Redis  RedisConfig  `json:"redis" yaml:"redis"`

	// DataDir holds the PnL snapshot and other small local state.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HolidayFile is an optional JSON list of YYYY-MM-DD market
	// holidays. A minimal built-in set is used when absent.
	HolidayFile string `json:"holiday_file,omitempty" yaml:"holiday_file,omitempty"`

	// AllowOverrides enables per-request preset overrides. Meant for
	// tests and dev; disable on production deployments.
	AllowOverrides bool `json:"allow_overrides" yaml:"allow_overrides"`
}

// StoreConfig selects the persistence backend. SQLite is the default;
// postgres is supported for multi-process deployments.
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "sqlite3" or "postgres"
	DSN    string `json:"dsn" yaml:"dsn"`
}

type AuditConfig struct {
	Path string `json:"path" yaml:"path"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`

	// TickInterval drives the auto-session scheduler and the broker
	// reconciliation sweep on the serve path.
	TickInterval Duration `json:"tick_interval" yaml:"tick_interval"`
}

// Duration wraps time.Duration so config files can say "30s" or "5m".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Bare numbers mean nanoseconds, matching time.Duration.
		var n int64
		if nerr := json.Unmarshal(b, &n); nerr != nil {
			return fmt.Errorf("parse duration: %w", err)
		}
		*d = Duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// RedisConfig is optional. When Addr is set the per-minute order
// counter is shared through Redis instead of process memory.
type RedisConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("store.driver must be 'sqlite3' or 'postgres', got %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	if c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required")
	}
	if c.Server.TickInterval < 0 {
		return fmt.Errorf("server.tick_interval must not be negative")
	}
	return nil
}

// Default returns a configuration with sensible defaults, honoring
// the conventional environment variables where set.
func Default() *Config {
	dataDir := envStr("RISKGATE_DATA_DIR", "./data")
	return &Config{
		Store: StoreConfig{
			Driver: envStr("RISKGATE_STORE_DRIVER", "sqlite3"),
			DSN:    envStr("RISKGATE_STORE_DSN", filepath.Join(dataDir, "riskgate.sqlite")),
		},
		Audit: AuditConfig{
			Path: envStr("AUDIT_LOG_PATH", filepath.Join(dataDir, "audit.jsonl")),
		},
		Server: ServerConfig{
			Addr:         envStr("RISKGATE_ADDR", ":8090"),
			TickInterval: Duration(30 * time.Second),
		},
		Redis: RedisConfig{
			Addr: os.Getenv("REDIS_ADDR"),
		},
		DataDir:        dataDir,
		HolidayFile:    os.Getenv("HOLIDAY_FILE"),
		AllowOverrides: envBool("ALLOW_RISK_OVERRIDES", true),
	}
}

func envStr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(name string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// EnvStr and friends expose env parsing to packages seeding their own
// defaults (the risk preset reads the same variables the original
// deployment used).
func EnvStr(name, def string) string         { return envStr(name, def) }
func EnvBool(name string, def bool) bool     { return envBool(name, def) }
func EnvInt(name string, def int) int        { return envInt(name, def) }
func EnvFloat(name string, def float64) float64 { return envFloat(name, def) }
