// Package store is the persistence substrate for riskgate: settings
// and flags as a key-value table, plus the session-budget tables the
// ledger queries directly.
package store

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Well-known settings keys.
const (
	KeyPreset         = "risk_preset"
	KeyLastOrderTS    = "last_order_ts"
	KeyCooloff        = "cooloff_active"
	KeyCircuitBreaker = "circuit_breaker"
)

type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects and migrates the schema. driver is "sqlite3" or
// "postgres".
func Open(driver, dsn string) (*Store, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	if _, err := db.Exec(db.Rebind(
		"INSERT INTO auto_session (id, enabled) VALUES (1, 0) ON CONFLICT (id) DO NOTHING")); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed auto_session: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

// DB exposes the underlying handle for packages that own their SQL.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// GetSetting returns the value for key, or ok=false when absent.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var v string
	err := s.db.Get(&v, s.db.Rebind("SELECT value FROM settings WHERE key = ?"), key)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

// SetSetting upserts key to value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`), key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key; deleting an absent key is a no-op.
func (s *Store) DeleteSetting(key string) error {
	_, err := s.db.Exec(s.db.Rebind("DELETE FROM settings WHERE key = ?"), key)
	if err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// FlagSet reports whether a boolean flag row (cooloff, circuit
// breaker) is present.
func (s *Store) FlagSet(key string) (bool, error) {
	_, ok, err := s.GetSetting(key)
	return ok, err
}

// SetFlag raises or clears a flag row. value describes why the flag
// was raised and lands in the settings table for operators.
func (s *Store) SetFlag(key string, active bool, value string) error {
	if !active {
		return s.DeleteSetting(key)
	}
	if value == "" {
		value = "1"
	}
	return s.SetSetting(key, value)
}
