// Package bookmarks implements the downstream "reload bookmarks" hook
// spec §6 names: a single idempotent call, triggered by the orchestrator
// at most once per batch, that refreshes a durable index of the notes
// currently on disk (used by whatever picker UI sits above this daemon).
package bookmarks

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/notewell/notesync/internal/db"
	"github.com/notewell/notesync/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
    name        TEXT PRIMARY KEY,
    path        TEXT NOT NULL,
    size        INTEGER NOT NULL,
    modified_at INTEGER NOT NULL
);
`

type BookmarkRow struct {
	Name       string `db:"name"`
	Path       string `db:"path"`
	Size       int64  `db:"size"`
	ModifiedAt int64  `db:"modified_at"`
}

// Store is a SQLite-backed reload target for LoadBookmarks.
type Store struct {
	db   *sqlx.DB
	root string
}

// Open creates or opens the bookmarks database at dbPath and ensures its
// schema exists. root is the local notes directory reloaded from on
// every LoadBookmarks call.
func Open(dbPath, root string) (*Store, error) {
	if err := utils.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("ensure bookmarks directory: %w", err)
	}

	conn, err := db.NewSqliteDB(db.WithPath(dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open bookmarks database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize bookmarks schema: %w", err)
	}

	return &Store{db: conn, root: root}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadBookmarks is the idempotent reload hook of spec §6. It replaces
// the bookmarks table wholesale with a fresh scan of root so any reader
// always observes one consistent snapshot, never a partial rewrite.
// Per the external contract it takes no parameters and returns nothing;
// failures are logged rather than surfaced, since the orchestrator's
// only use of this hook is fire-and-forget.
func (s *Store) LoadBookmarks() {
	if err := s.reload(); err != nil {
		slog.Error("bookmarks", "op", "reload", "error", err)
		return
	}
	slog.Debug("bookmarks", "op", "reload", "status", "ok")
}

func (s *Store) reload() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("read notes dir: %w", err)
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin reload tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM bookmarks"); err != nil {
		return fmt.Errorf("clear bookmarks: %w", err)
	}

	stmt, err := tx.PrepareNamed(`
		INSERT INTO bookmarks (name, path, size, modified_at)
		VALUES (:name, :path, :size, :modified_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if entry.IsDir() || !utils.IsAcceptedNote(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		row := BookmarkRow{
			Name:       entry.Name(),
			Path:       filepath.Join(s.root, entry.Name()),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().Unix(),
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert %s: %w", entry.Name(), err)
		}
	}

	return tx.Commit()
}

// List returns every bookmarked note, most recently modified first.
func (s *Store) List() ([]BookmarkRow, error) {
	var rows []BookmarkRow
	err := s.db.Select(&rows, "SELECT name, path, size, modified_at FROM bookmarks ORDER BY modified_at DESC")
	return rows, err
}
