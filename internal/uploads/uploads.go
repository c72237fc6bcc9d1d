// Package uploads records submitted grids as durable upload history.
package uploads

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/csvgrid/csvgrid/internal/automap"
	"github.com/csvgrid/csvgrid/internal/grid"
)

// ErrNotFound is returned when no upload exists under the requested ID.
var ErrNotFound = errors.New("upload not found")

// Upload is one submitted grid: the mapped rows plus the mapping that
// produced them.
type Upload struct {
	ID        uuid.UUID        `json:"id"`
	Workbook  string           `json:"workbook"`
	Mapping   automap.Mapping  `json:"mapping"`
	Rows      []grid.MappedRow `json:"rows"`
	RowCount  int              `json:"rowCount"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Store persists uploads. List returns newest first.
type Store interface {
	Create(ctx context.Context, up Upload) (Upload, error)
	List(ctx context.Context) ([]Upload, error)
	Get(ctx context.Context, id uuid.UUID) (Upload, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// normalize fills server-assigned fields. RowCount is always recomputed
// from the rows; client-supplied counts are ignored.
func normalize(up Upload) Upload {
	if up.ID == uuid.Nil {
		up.ID = uuid.New()
	}
	if up.CreatedAt.IsZero() {
		up.CreatedAt = time.Now().UTC()
	}
	up.RowCount = len(up.Rows)
	return up
}

// Recorder adapts a Store into the grid's submit collaborator: every
// successful submission becomes one upload record.
type Recorder struct {
	store Store
}

// NewRecorder wraps store as a grid submitter.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Submit records the submitted grid.
func (r *Recorder) Submit(ctx context.Context, req grid.SubmitRequest) error {
	_, err := r.store.Create(ctx, Upload{
		Workbook: req.Workbook,
		Mapping:  req.Mapping,
		Rows:     req.Rows,
	})
	return err
}
