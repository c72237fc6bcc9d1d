package grid

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/csvgrid/csvgrid/internal/schema"
	"github.com/csvgrid/csvgrid/internal/sessionstore"
)

// catalogKey is the reserved store key for the field catalog. One catalog is
// shared by all workbooks.
const catalogKey = "fieldcatalog"

// LoadCatalog reads the persisted field catalog. A missing or corrupt
// catalog yields nil; sessions then derive plain unvalidated columns.
func LoadCatalog(ctx context.Context, store sessionstore.Store) []schema.SchemaColumn {
	if store == nil {
		return nil
	}
	data, err := store.Get(ctx, catalogKey)
	if err != nil {
		return nil
	}
	var cols []schema.SchemaColumn
	if err := json.Unmarshal(data, &cols); err != nil {
		return nil
	}
	return cols
}

// SaveCatalog persists the field catalog.
func SaveCatalog(ctx context.Context, store sessionstore.Store, cols []schema.SchemaColumn) error {
	if store == nil {
		return nil
	}
	data, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := store.Set(ctx, catalogKey, data); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}
