package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	assert.Equal(t, ":8090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.TickInterval.Std())
	assert.NoError(t, cfg.Validate())
}

func TestDefaultHonorsEnv(t *testing.T) {
	t.Setenv("RISKGATE_STORE_DRIVER", "postgres")
	t.Setenv("RISKGATE_STORE_DSN", "postgres://localhost/riskgate")
	t.Setenv("RISKGATE_ADDR", ":9999")
	t.Setenv("ALLOW_RISK_OVERRIDES", "0")

	cfg := Default()
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/riskgate", cfg.Store.DSN)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.False(t, cfg.AllowOverrides)
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: sqlite3
  dsn: /tmp/riskgate.sqlite
audit:
  path: /tmp/audit.jsonl
server:
  addr: ":7070"
  tick_interval: 10s
allow_overrides: false
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/riskgate.sqlite", cfg.Store.DSN)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.TickInterval.Std())
	assert.False(t, cfg.AllowOverrides)
}

func TestLoadFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"store":{"driver":"sqlite3","dsn":"/tmp/r.sqlite"},"audit":{"path":"/tmp/a.jsonl"}}`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/r.sqlite", cfg.Store.DSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }},
		{"empty dsn", func(c *Config) { c.Store.DSN = "" }},
		{"empty audit path", func(c *Config) { c.Audit.Path = "" }},
		{"negative tick", func(c *Config) { c.Server.TickInterval = Duration(-time.Second) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`{{{not parseable`), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}
