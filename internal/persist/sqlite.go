package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLitePersister implements Persister on a single key-value table.
// The database handle is expected to be opened with the modernc "sqlite"
// driver and SetMaxOpenConns(1).
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister creates a new SQLitePersister.
func NewSQLitePersister(db *sql.DB) *SQLitePersister {
	return &SQLitePersister{db: db}
}

// CreateTable creates the batch_state table if it does not exist.
func (p *SQLitePersister) CreateTable(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS batch_state (
			state_key  TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating batch_state table: %w", err)
	}
	return nil
}

func (p *SQLitePersister) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT payload FROM batch_state WHERE state_key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading batch state %q: %w", key, err)
	}
	return payload, nil
}

func (p *SQLitePersister) Save(ctx context.Context, key string, data []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO batch_state (state_key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(state_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving batch state %q: %w", key, err)
	}
	return nil
}

func (p *SQLitePersister) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM batch_state WHERE state_key = ?`, key); err != nil {
		return fmt.Errorf("deleting batch state %q: %w", key, err)
	}
	return nil
}
