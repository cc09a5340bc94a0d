// Package inventory provides the SQLite-backed slide catalog. The
// filesystem (tile pyramids plus the mapping file) is the source of
// truth; the database is a queryable index rebuilt by Sync.
package inventory

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pathview/inkscan/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS slides (
	name             TEXT PRIMARY KEY,
	entry_number     INTEGER NOT NULL DEFAULT 0,
	svs_file         TEXT NOT NULL DEFAULT '',
	tiles_directory  TEXT NOT NULL DEFAULT '',
	collection       TEXT NOT NULL DEFAULT '',
	width            INTEGER NOT NULL DEFAULT 0,
	height           INTEGER NOT NULL DEFAULT 0,
	aspect_ratio     REAL NOT NULL DEFAULT 0,
	dzi_levels       INTEGER NOT NULL DEFAULT 0,
	updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_slides_entry ON slides(entry_number);
`

// SlideRow represents a row in the slides table.
type SlideRow struct {
	Name           string
	EntryNumber    int
	SVSFile        string
	TilesDirectory string
	Collection     string
	Width          int
	Height         int
	AspectRatio    float64
	DZILevels      int
	UpdatedAt      time.Time
}

// SlideIndex defines the catalog operations. Consumers should depend on
// this interface rather than the concrete *DB type to facilitate
// testing with mocks.
type SlideIndex interface {
	Upsert(s SlideRow) error
	Get(name string) (*SlideRow, error)
	List() ([]SlideRow, error)
	Delete(name string) error
	AllNames() (map[string]struct{}, error)
	Close() error
}

// Verify *DB satisfies SlideIndex at compile time.
var _ SlideIndex = (*DB)(nil)

// DB wraps a sql.DB with catalog-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("inventory: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("inventory: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("inventory: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Upsert inserts or replaces a slide row.
func (db *DB) Upsert(s SlideRow) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO slides (name, entry_number, svs_file, tiles_directory, collection, width, height, aspect_ratio, dzi_levels, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			entry_number    = excluded.entry_number,
			svs_file        = excluded.svs_file,
			tiles_directory = excluded.tiles_directory,
			collection      = excluded.collection,
			width           = excluded.width,
			height          = excluded.height,
			aspect_ratio    = excluded.aspect_ratio,
			dzi_levels      = excluded.dzi_levels,
			updated_at      = excluded.updated_at
	`, s.Name, s.EntryNumber, s.SVSFile, s.TilesDirectory, s.Collection, s.Width, s.Height, s.AspectRatio, s.DZILevels, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inventory: upsert slide: %w", err)
	}
	return nil
}

// Get returns one slide by name, or apperr.ErrNotFound.
func (db *DB) Get(name string) (*SlideRow, error) {
	var s SlideRow
	err := db.conn.QueryRow(`
		SELECT name, entry_number, svs_file, tiles_directory, collection, width, height, aspect_ratio, dzi_levels, updated_at
		FROM slides WHERE name = ?
	`, name).Scan(&s.Name, &s.EntryNumber, &s.SVSFile, &s.TilesDirectory, &s.Collection, &s.Width, &s.Height, &s.AspectRatio, &s.DZILevels, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: get slide: %w", err)
	}
	return &s, nil
}

// List returns all slides in mapping-entry order.
func (db *DB) List() ([]SlideRow, error) {
	rows, err := db.conn.Query(`
		SELECT name, entry_number, svs_file, tiles_directory, collection, width, height, aspect_ratio, dzi_levels, updated_at
		FROM slides ORDER BY entry_number, name
	`)
	if err != nil {
		return nil, fmt.Errorf("inventory: list slides: %w", err)
	}
	defer rows.Close()

	var out []SlideRow
	for rows.Next() {
		var s SlideRow
		if err := rows.Scan(&s.Name, &s.EntryNumber, &s.SVSFile, &s.TilesDirectory, &s.Collection, &s.Width, &s.Height, &s.AspectRatio, &s.DZILevels, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a slide row.
func (db *DB) Delete(name string) error {
	if _, err := db.conn.Exec(`DELETE FROM slides WHERE name = ?`, name); err != nil {
		return fmt.Errorf("inventory: delete slide: %w", err)
	}
	return nil
}

// AllNames returns every cataloged slide name.
func (db *DB) AllNames() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT name FROM slides`)
	if err != nil {
		return nil, fmt.Errorf("inventory: all names: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out[n] = struct{}{}
	}
	return out, rows.Err()
}
