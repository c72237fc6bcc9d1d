package automap

import (
	"github.com/csvgrid/csvgrid/internal/schema"
)

// Mapping assigns each expected column key to the CSV header it reads from.
// Every active column key is present; an empty value means unmapped.
type Mapping map[string]string

// MappedCount returns how many columns are mapped to a header.
func (m Mapping) MappedCount() int {
	n := 0
	for _, h := range m {
		if h != "" {
			n++
		}
	}
	return n
}

// Clone returns an independent copy of the mapping.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MapColumns builds a Mapping for the given columns against parsed headers.
// For each column, in declaration order, the candidates are its label then
// its key; the first normalized exact match against the headers wins. When
// several headers normalize identically the first occurrence is used. A
// column with no match stays unmapped.
//
// The result is a pure function of (columns, headers): mapping twice yields
// the same assignment.
func MapColumns(cols []schema.ExpectedColumn, headers []string) Mapping {
	byNorm := make(map[string]string, len(headers))
	for _, h := range headers {
		n := Normalize(h)
		if _, ok := byNorm[n]; !ok {
			byNorm[n] = h
		}
	}

	m := make(Mapping, len(cols))
	for _, col := range cols {
		m[col.Key] = ""
		for _, candidate := range []string{col.Label, col.Key} {
			if h, ok := byNorm[Normalize(candidate)]; ok {
				m[col.Key] = h
				break
			}
		}
	}
	return m
}

// Detection reports how well the chosen schema fit the headers.
type Detection struct {
	SchemaID        string `json:"schemaId"`
	Score           int    `json:"score"`
	RequiredMatches int    `json:"requiredMatches"`
}

// DetectSchema scores every candidate schema against the headers and returns
// the best fit. A column counts toward score when its label or key has any
// normalized header match; requiredMatches counts the matched columns that
// are required. Required matches dominate, raw score breaks ties, and
// remaining ties keep the earliest schema. A schema matching nothing is never
// selected; the second return is false when no schema matched at all.
func DetectSchema(schemas []schema.Schema, headers []string) (Detection, bool) {
	headerSet := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		headerSet[Normalize(h)] = struct{}{}
	}

	var best Detection
	found := false
	for _, s := range schemas {
		var score, required int
		for _, col := range s.Columns {
			if !matchesAny(headerSet, col.Label, col.Key) {
				continue
			}
			score++
			if col.Required {
				required++
			}
		}
		if score == 0 {
			continue
		}
		if !found ||
			required > best.RequiredMatches ||
			(required == best.RequiredMatches && score > best.Score) {
			best = Detection{SchemaID: s.ID, Score: score, RequiredMatches: required}
			found = true
		}
	}
	return best, found
}

func matchesAny(headerSet map[string]struct{}, candidates ...string) bool {
	for _, c := range candidates {
		if _, ok := headerSet[Normalize(c)]; ok {
			return true
		}
	}
	return false
}

// DeriveColumns builds an ad-hoc expected column set straight from raw
// headers, for imports with no schema chosen. A header matching a catalog
// entry (by normalized label or key) takes that entry's key, label, and
// rules; unknown headers become plain unvalidated columns keyed by a slug of
// the header. Headers that collapse to an already-used key are skipped, which
// matches the first-occurrence rule for duplicate headers.
func DeriveColumns(headers []string, catalog []schema.SchemaColumn) []schema.ExpectedColumn {
	cols := make([]schema.ExpectedColumn, 0, len(headers))
	used := make(map[string]struct{}, len(headers))

	for _, h := range headers {
		sc, ok := catalogLookup(catalog, h)
		if !ok {
			sc = schema.SchemaColumn{Key: slugKey(h), Label: h}
		}
		if _, dup := used[sc.Key]; dup {
			continue
		}
		used[sc.Key] = struct{}{}
		cols = append(cols, schema.CompileColumn(sc))
	}
	return cols
}

func catalogLookup(catalog []schema.SchemaColumn, header string) (schema.SchemaColumn, bool) {
	n := Normalize(header)
	for _, sc := range catalog {
		if Normalize(sc.Label) == n || Normalize(sc.Key) == n {
			return sc, true
		}
	}
	return schema.SchemaColumn{}, false
}
