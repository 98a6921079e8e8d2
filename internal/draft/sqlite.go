package draft

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores drafts in a local SQLite file, for single-user setups
// without Redis.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteBackend opens (or creates) the draft database at dir/drafts.db.
func OpenSQLiteBackend(dir string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating draft dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "drafts.db"))
	if err != nil {
		return nil, fmt.Errorf("opening draft db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS drafts (
		key        TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating draft table: %w", err)
	}

	return &SQLiteBackend{db: db, now: time.Now}, nil
}

// Get implements Backend.
func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM drafts WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading draft: %w", err)
	}
	return data, nil
}

// Set implements Backend.
func (b *SQLiteBackend) Set(ctx context.Context, key string, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO drafts (key, data, updated_at) VALUES (?, ?, ?)`,
		key, data, b.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing draft: %w", err)
	}
	return nil
}

// Remove implements Backend.
func (b *SQLiteBackend) Remove(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting draft: %w", err)
	}
	return nil
}

// Purge deletes drafts not written since before and returns how many were removed.
func (b *SQLiteBackend) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM drafts WHERE updated_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("purging drafts: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the draft database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
