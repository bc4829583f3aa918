// Package db wraps sqlx around the pure-Go SQLite driver used for the
// bookmarks cache (internal/bookmarks). Kept deliberately thin: callers
// get a *sqlx.DB and drive their own queries.
package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/notewell/notesync/internal/utils"
)

const driverName = "sqlite3"

const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
`

type config struct {
	path            string
	pragmas         string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

type SqliteOption func(*config)

// WithPath sets the database file path. Use ":memory:" for an in-memory
// database (mainly for tests).
func WithPath(path string) SqliteOption {
	return func(c *config) { c.path = path }
}

func WithPragmas(pragmas string) SqliteOption {
	return func(c *config) { c.pragmas = pragmas }
}

func WithMaxOpenConns(n int) SqliteOption {
	return func(c *config) { c.maxOpenConns = n }
}

func WithMaxIdleConns(n int) SqliteOption {
	return func(c *config) { c.maxIdleConns = n }
}

func WithConnMaxLifetime(d time.Duration) SqliteOption {
	return func(c *config) { c.connMaxLifetime = d }
}

// NewSqliteDB opens a sqlx.DB using the pure-Go SQLite driver, applying
// the given options over sane defaults.
func NewSqliteDB(opts ...SqliteOption) (*sqlx.DB, error) {
	cfg := &config{
		path:         ":memory:",
		pragmas:      defaultPragma,
		maxOpenConns: 0,
		maxIdleConns: 2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	dsn := ":memory:"
	if cfg.path != ":memory:" {
		if err := utils.EnsureParent(cfg.path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", cfg.path)
	}

	slog.Info("db", "driver", driverName, "path", cfg.path)
	conn, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.maxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.maxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.maxIdleConns)
	}
	if cfg.connMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.connMaxLifetime)
	}

	if _, err := conn.Exec(cfg.pragmas); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return conn, nil
}
