// Package prefs persists table column layouts (widths and hidden columns)
// in SQLite. Layouts are keyed by owner and table id; the zero owner holds
// layouts shared by everyone.
package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/votedesk/internal/clock"
	"github.com/JonMunkholm/votedesk/internal/datatable"
)

const schema = `CREATE TABLE IF NOT EXISTS column_prefs (
	owner      TEXT NOT NULL DEFAULT '',
	table_id   TEXT NOT NULL,
	prefs      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (owner, table_id)
)`

const (
	loadQuery = `SELECT prefs FROM column_prefs WHERE owner = ? AND table_id = ?`
	saveQuery = `INSERT INTO column_prefs (owner, table_id, prefs, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (owner, table_id) DO UPDATE SET prefs = excluded.prefs, updated_at = excluded.updated_at`
)

// Store is a datatable.PreferenceStore backed by database/sql.
type Store struct {
	db    *sql.DB
	owner string
	clock clock.Clock
}

var _ datatable.PreferenceStore = (*Store)(nil)

// New wraps an open database. Call Migrate before first use.
func New(db *sql.DB, c clock.Clock) *Store {
	if c == nil {
		c = clock.Real()
	}
	return &Store{db: db, clock: c}
}

// Open opens (creating if needed) the SQLite file at path and migrates it.
// ":memory:" gives a private in-process database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("prefs: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("prefs: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("prefs: %s: %w", p, err)
		}
	}

	s := New(db, nil)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("prefs: migrate: %w", err)
	}
	return nil
}

// ForOwner returns a view of the store scoped to owner.
func (s *Store) ForOwner(owner string) *Store {
	scoped := *s
	scoped.owner = owner
	return &scoped
}

// Load returns the saved layout, or zero prefs when none is saved.
func (s *Store) Load(ctx context.Context, tableID string) (datatable.ColumnPrefs, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, loadQuery, s.owner, tableID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return datatable.ColumnPrefs{}, nil
	}
	if err != nil {
		return datatable.ColumnPrefs{}, fmt.Errorf("load prefs %s: %w", tableID, err)
	}

	var p datatable.ColumnPrefs
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return datatable.ColumnPrefs{}, fmt.Errorf("decode prefs %s: %w", tableID, err)
	}
	return p, nil
}

// Save upserts the layout.
func (s *Store) Save(ctx context.Context, tableID string, p datatable.ColumnPrefs) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prefs %s: %w", tableID, err)
	}
	updated := s.clock.Now().UTC().Format("2006-01-02T15:04:05Z")
	if _, err := s.db.ExecContext(ctx, saveQuery, s.owner, tableID, string(raw), updated); err != nil {
		return fmt.Errorf("save prefs %s: %w", tableID, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
