package grid

import "github.com/csvgrid/csvgrid/internal/schema"

// CellError is one validation failure, addressed by column key. Validation
// problems are data, not Go errors; nothing here is fatal.
type CellError struct {
	ColumnKey string `json:"columnKey"`
	Message   string `json:"message"`
}

// RowValidation is the full error list for one mapped row. Exactly one exists
// per MappedRow, index-aligned, and always reflects the row's current
// contents.
type RowValidation struct {
	RowIndex int         `json:"rowIndex"`
	Errors   []CellError `json:"errors"`
}

// Valid reports whether the row passed every check.
func (rv RowValidation) Valid() bool {
	return len(rv.Errors) == 0
}

// ValidateRow evaluates one mapped row against the columns in declaration
// order: the required check first, then the column's compiled rules, at most
// one message per column.
func ValidateRow(row MappedRow, cols []schema.ExpectedColumn) []CellError {
	var errs []CellError
	for _, col := range cols {
		if msg := col.CheckCell(row[col.Key]); msg != "" {
			errs = append(errs, CellError{ColumnKey: col.Key, Message: msg})
		}
	}
	return errs
}

// ValidateRows validates every row, producing the index-aligned RowValidation
// slice the session maintains from then on.
func ValidateRows(rows []MappedRow, cols []schema.ExpectedColumn) []RowValidation {
	out := make([]RowValidation, len(rows))
	for i, row := range rows {
		out[i] = RowValidation{RowIndex: i, Errors: ValidateRow(row, cols)}
	}
	return out
}
