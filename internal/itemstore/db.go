// Package itemstore provides SQLite-backed persistence for item records.
package itemstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS items (
	id          TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	created     INTEGER NOT NULL,
	completed   INTEGER NOT NULL DEFAULT 0,
	images      TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_items_created ON items(created);
`

// DB wraps a sql.DB with item-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("itemstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("itemstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("itemstore: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get returns the item with the given id, or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, id string) (*models.Item, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, description, created, completed, images FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("itemstore: get %s: %w", id, err)
	}
	return item, nil
}

// Put inserts or replaces the whole item record.
func (db *DB) Put(ctx context.Context, item *models.Item) error {
	imagesJSON, _ := json.Marshal(item.Images)
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO items (id, description, created, completed, images)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			created     = excluded.created,
			completed   = excluded.completed,
			images      = excluded.images
	`, item.ID, item.Description, item.Created, boolToInt(item.Completed), string(imagesJSON))
	if err != nil {
		return fmt.Errorf("itemstore: put %s: %w", item.ID, err)
	}
	return nil
}

// Delete removes the item record. Deleting a missing id is not an error.
func (db *DB) Delete(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("itemstore: delete %s: %w", id, err)
	}
	return nil
}

// Scan returns every item ordered by creation time (ties broken by id
// so the order is stable).
func (db *DB) Scan(ctx context.Context) ([]models.Item, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, description, created, completed, images FROM items ORDER BY created, id`)
	if err != nil {
		return nil, fmt.Errorf("itemstore: scan: %w", err)
	}
	defer rows.Close()

	var out []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("itemstore: scan row: %w", err)
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (*models.Item, error) {
	var (
		item       models.Item
		completed  int
		imagesJSON string
	)
	if err := r.Scan(&item.ID, &item.Description, &item.Created, &completed, &imagesJSON); err != nil {
		return nil, err
	}
	item.Completed = completed != 0
	var images []string
	if err := json.Unmarshal([]byte(imagesJSON), &images); err != nil {
		return nil, fmt.Errorf("decode images column: %w", err)
	}
	if len(images) > 0 {
		item.Images = images
	}
	return &item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
