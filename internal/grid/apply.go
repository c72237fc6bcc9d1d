// Package grid owns the editable import grid: projecting parsed rows through
// a column mapping, validating them, and the import/map/edit session state
// machine with filtering, pagination, bulk operations, and snapshots.
package grid

import (
	"github.com/csvgrid/csvgrid/internal/automap"
	"github.com/csvgrid/csvgrid/internal/schema"
)

// MappedRow is one source row projected into expected-column keys. Its
// position in the mapped slice is the row's stable identity for the life of
// the session.
type MappedRow map[string]string

// Apply projects raw rows into keyed rows. For every row and column, the
// mapped header resolves to a source index by exact name, first occurrence
// winning when a header repeats. An unmapped column or an index past the end
// of a short row yields "". The result is index-aligned with rows.
func Apply(rows [][]string, headers []string, cols []schema.ExpectedColumn, mapping automap.Mapping) []MappedRow {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, ok := index[h]; !ok {
			index[h] = i
		}
	}

	out := make([]MappedRow, len(rows))
	for ri, row := range rows {
		mr := make(MappedRow, len(cols))
		for _, col := range cols {
			value := ""
			if header := mapping[col.Key]; header != "" {
				if pos, ok := index[header]; ok && pos < len(row) {
					value = row[pos]
				}
			}
			mr[col.Key] = value
		}
		out[ri] = mr
	}
	return out
}
