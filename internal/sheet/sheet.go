// Package sheet parses delimited text into an in-memory table and writes
// tables back out as CSV.
//
// The parser is deliberately forgiving: rows keep whatever width they arrived
// with, a trailing line without a newline still counts, and malformed quoting
// degrades to literal characters instead of an error. Cleanup is the caller's
// job; the parser's job is to lose nothing.
package sheet

import (
	"strings"

	"github.com/zeebo/xxh3"
)

// Sheet is a parsed table: the first record as headers, everything after as
// data rows. Both slices are always non-nil so JSON encoding yields [] rather
// than null.
type Sheet struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Empty reports whether the sheet has no headers and no rows.
func (s Sheet) Empty() bool {
	return len(s.Headers) == 0 && len(s.Rows) == 0
}

// Fingerprint returns a stable content hash over headers and rows. Cell and
// record boundaries are fed to the hash as separator bytes so that shifting a
// value between cells changes the result.
func (s Sheet) Fingerprint() uint64 {
	h := xxh3.New()
	for _, cell := range s.Headers {
		_, _ = h.WriteString(cell)
		_, _ = h.Write([]byte{0x1F})
	}
	_, _ = h.Write([]byte{0x1E})
	for _, row := range s.Rows {
		for _, cell := range row {
			_, _ = h.WriteString(cell)
			_, _ = h.Write([]byte{0x1F})
		}
		_, _ = h.Write([]byte{0x1E})
	}
	return h.Sum64()
}

// IsEmptyRow reports whether every cell in the row is blank after trimming.
func IsEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
