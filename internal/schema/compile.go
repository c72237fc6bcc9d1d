package schema

import (
	"regexp"
	"strings"
)

// Validator checks one non-empty cell value and returns an error message, or
// "" when the value passes.
type Validator func(value string) string

// ExpectedColumn is a SchemaColumn compiled into a runtime-evaluable form.
// Validate composes the column's rules in declaration order; the implicit
// required check is applied by the caller before Validate runs.
type ExpectedColumn struct {
	Key      string
	Label    string
	Required bool
	Validate Validator
}

// Compile turns a schema's columns into ExpectedColumns. It is pure: the same
// schema always compiles to columns with identical behavior, so callers may
// memoize per schema.
func Compile(s Schema) []ExpectedColumn {
	cols := make([]ExpectedColumn, len(s.Columns))
	for i, sc := range s.Columns {
		cols[i] = CompileColumn(sc)
	}
	return cols
}

// CompileColumn compiles a single column. Columns without rules get a nil
// Validate.
func CompileColumn(sc SchemaColumn) ExpectedColumn {
	col := ExpectedColumn{
		Key:      sc.Key,
		Label:    sc.Label,
		Required: sc.Required,
	}

	var validators []Validator
	for _, rule := range sc.Rules {
		if v := compileRule(rule, sc.Label); v != nil {
			validators = append(validators, v)
		}
	}

	switch len(validators) {
	case 0:
	case 1:
		col.Validate = validators[0]
	default:
		col.Validate = chain(validators)
	}
	return col
}

// CheckCell runs the full per-cell precedence: the required check first, then
// the column's rules. An empty value short-circuits: a required empty cell
// reports only the required message, and an optional empty cell is always
// valid since rules never re-flag emptiness.
func (c ExpectedColumn) CheckCell(value string) string {
	if strings.TrimSpace(value) == "" {
		if c.Required {
			return c.Label + " is required"
		}
		return ""
	}
	if c.Validate == nil {
		return ""
	}
	return c.Validate(value)
}

func compileRule(rule Rule, label string) Validator {
	switch rule.Kind {
	case RuleRegex:
		return compileRegex(rule, label)
	case RuleEnum:
		return compileEnum(rule, label)
	default:
		// Unknown kinds are ignored rather than failing the schema.
		return nil
	}
}

func compileRegex(rule Rule, label string) Validator {
	message := rule.Message
	if message == "" {
		message = label + " is invalid"
	}

	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		// A broken pattern can never match, so every non-empty value
		// fails with the rule's message instead of crashing the import.
		return func(string) string { return message }
	}

	return func(value string) string {
		if re.MatchString(value) {
			return ""
		}
		return message
	}
}

func compileEnum(rule Rule, label string) Validator {
	message := rule.Message
	if message == "" {
		message = label + " must be one of " + strings.Join(rule.Values, ", ")
	}

	allowed := make(map[string]struct{}, len(rule.Values))
	for _, v := range rule.Values {
		allowed[v] = struct{}{}
	}

	return func(value string) string {
		// Membership is case-sensitive and exact.
		if _, ok := allowed[value]; ok {
			return ""
		}
		return message
	}
}

// chain evaluates validators in declaration order and returns the first
// failure.
func chain(validators []Validator) Validator {
	return func(value string) string {
		for _, v := range validators {
			if msg := v(value); msg != "" {
				return msg
			}
		}
		return ""
	}
}
