package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/csvgrid/csvgrid/internal/automap"
	"github.com/csvgrid/csvgrid/internal/grid"
)

// Postgres is a Store backed by a shared pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool and ensures the uploads table exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS uploads (
			id         UUID PRIMARY KEY,
			workbook   TEXT NOT NULL,
			mapping    JSONB NOT NULL,
			rows       JSONB NOT NULL,
			row_count  INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return nil, fmt.Errorf("init uploads table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Create stores the upload, assigning its ID and timestamp if unset.
func (p *Postgres) Create(ctx context.Context, up Upload) (Upload, error) {
	up = normalize(up)

	mappingJSON, err := json.Marshal(up.Mapping)
	if err != nil {
		return Upload{}, fmt.Errorf("encode mapping: %w", err)
	}
	rowsJSON, err := json.Marshal(up.Rows)
	if err != nil {
		return Upload{}, fmt.Errorf("encode rows: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO uploads (id, workbook, mapping, rows, row_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		up.ID, up.Workbook, mappingJSON, rowsJSON, up.RowCount, up.CreatedAt)
	if err != nil {
		return Upload{}, fmt.Errorf("insert upload: %w", err)
	}
	return up, nil
}

// List returns all uploads, newest first.
func (p *Postgres) List(ctx context.Context) ([]Upload, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, workbook, mapping, rows, row_count, created_at
		FROM uploads ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	out := []Upload{}
	for rows.Next() {
		up, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, up)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return out, nil
}

// Get returns one upload by ID.
func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (Upload, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, workbook, mapping, rows, row_count, created_at
		FROM uploads WHERE id = $1`, id)

	up, err := scanUpload(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Upload{}, ErrNotFound
	}
	return up, err
}

// Delete removes one upload by ID.
func (p *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, "DELETE FROM uploads WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUpload(row pgx.Row) (Upload, error) {
	var (
		up          Upload
		mappingJSON []byte
		rowsJSON    []byte
	)
	err := row.Scan(&up.ID, &up.Workbook, &mappingJSON, &rowsJSON, &up.RowCount, &up.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Upload{}, pgx.ErrNoRows
	}
	if err != nil {
		return Upload{}, fmt.Errorf("scan upload: %w", err)
	}

	if err := json.Unmarshal(mappingJSON, &up.Mapping); err != nil {
		return Upload{}, fmt.Errorf("decode mapping: %w", err)
	}
	if len(rowsJSON) > 0 {
		if err := json.Unmarshal(rowsJSON, &up.Rows); err != nil {
			return Upload{}, fmt.Errorf("decode rows: %w", err)
		}
	}
	if up.Rows == nil {
		up.Rows = []grid.MappedRow{}
	}
	if up.Mapping == nil {
		up.Mapping = automap.Mapping{}
	}
	return up, nil
}
