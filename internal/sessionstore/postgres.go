package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Store backed by a shared pgx pool, for deployments where
// several instances serve the same workbooks.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool and ensures the store table exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS session_entries (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return nil, fmt.Errorf("init session table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Get returns the value stored under key.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx,
		"SELECT value FROM session_entries WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session entry: %w", err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO session_entries (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set session entry: %w", err)
	}
	return nil
}

// Remove deletes the key. Removing an absent key is not an error.
func (p *Postgres) Remove(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx,
		"DELETE FROM session_entries WHERE key = $1", key); err != nil {
		return fmt.Errorf("remove session entry: %w", err)
	}
	return nil
}

// PruneOlderThan deletes entries under prefix last written before cutoff.
func (p *Postgres) PruneOlderThan(ctx context.Context, prefix string, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		"DELETE FROM session_entries WHERE key LIKE $1 || '%' AND updated_at < $2",
		prefix, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune session entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
