package uploads

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/csvgrid/csvgrid/internal/automap"
	"github.com/csvgrid/csvgrid/internal/grid"
)

func sampleUpload(workbook string) Upload {
	return Upload{
		Workbook: workbook,
		Mapping:  automap.Mapping{"assetId": "Asset ID"},
		Rows: []grid.MappedRow{
			{"assetId": "1"},
			{"assetId": "2"},
		},
	}
}

func TestMemory_CreateAssignsServerFields(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	in := sampleUpload("wb")
	in.RowCount = 99 // client-supplied counts are ignored

	created, err := m.Create(ctx, in)
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, 2, created.RowCount)

	got, err := m.Get(ctx, created.ID)
	assert.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestMemory_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.Create(ctx, sampleUpload("wb-1"))
	assert.NoError(t, err)
	second, err := m.Create(ctx, sampleUpload("wb-2"))
	assert.NoError(t, err)

	list, err := m.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created, err := m.Create(ctx, sampleUpload("wb"))
	assert.NoError(t, err)

	assert.NoError(t, m.Delete(ctx, created.ID))
	assert.ErrorIs(t, m.Delete(ctx, created.ID), ErrNotFound)
	_, err = m.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := m.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemory_PreservesExplicitTimestamp(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := sampleUpload("wb")
	in.CreatedAt = at

	created, err := m.Create(ctx, in)
	assert.NoError(t, err)
	assert.Equal(t, at, created.CreatedAt)
}

func TestRecorder_RecordsSubmission(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := NewRecorder(m)

	err := rec.Submit(ctx, grid.SubmitRequest{
		Workbook: "wb",
		Rows:     []grid.MappedRow{{"assetId": "1"}},
		Mapping:  automap.Mapping{"assetId": "Asset ID"},
	})
	assert.NoError(t, err)

	list, err := m.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "wb", list[0].Workbook)
	assert.Equal(t, 1, list[0].RowCount)
	assert.Equal(t, "Asset ID", list[0].Mapping["assetId"])
}
