package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// WriteCSV writes a header row followed by data rows as comma-separated text.
// Fields containing commas, quotes, or newlines are quoted with internal
// quotes doubled, so the output survives a round trip through Parse.
func WriteCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ExportString renders headers and rows to a CSV string.
func ExportString(headers []string, rows [][]string) string {
	var sb strings.Builder
	// strings.Builder never returns a write error.
	_ = WriteCSV(&sb, headers, rows)
	return sb.String()
}
