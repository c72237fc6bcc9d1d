// Package schema defines the column catalogs CSV imports are reconciled
// against and compiles their declarative rules into evaluable validators.
//
// A Schema is plain data: an ordered list of columns, each with a stable key,
// a display label, a required flag, and zero or more rules. Rules are the
// JSON-serializable import/export shape for the schema editor; nothing in a
// Schema holds executable state. Compile turns a Schema into ExpectedColumns,
// which do.
package schema

// RuleKind discriminates the rule variants.
type RuleKind string

const (
	RuleRegex RuleKind = "regex"
	RuleEnum  RuleKind = "enum"
)

// Rule is one declarative validation constraint on a column. Kind selects
// which of the remaining fields apply: Pattern for regex rules, Values for
// enum rules. Message, when set, overrides the built-in error text.
type Rule struct {
	Kind    RuleKind `json:"kind"`
	Pattern string   `json:"pattern,omitempty"`
	Values  []string `json:"values,omitempty"`
	Message string   `json:"message,omitempty"`
}

// SchemaColumn is one expected field of a schema. Key is the stable machine
// identifier, unique within its schema; Label is what users see and what the
// CSV export writes as the header.
type SchemaColumn struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required,omitempty"`
	Rules    []Rule `json:"rules,omitempty"`
}

// Schema is a named, ordered set of expected columns. Schemas are mutable
// only by whole-object replacement; IDs are unique, names need not be.
type Schema struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Columns     []SchemaColumn `json:"columns"`
}

// Column returns the column with the given key, if present.
func (s Schema) Column(key string) (SchemaColumn, bool) {
	for _, col := range s.Columns {
		if col.Key == key {
			return col, true
		}
	}
	return SchemaColumn{}, false
}
