package metadata

import (
	"strings"
)

// Operator enumerates the supported filter comparisons.
type Operator uint8

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterEqual
	OpLessThan
	OpLessEqual
	OpIn
	OpContains
	OpExists
	OpAnd
	OpOr
	OpNot
)

// String returns a short mnemonic for the operator.
func (op Operator) String() string {
	switch op {
	case OpEqual:
		return "eq"
	case OpNotEqual:
		return "ne"
	case OpGreaterThan:
		return "gt"
	case OpGreaterEqual:
		return "gte"
	case OpLessThan:
		return "lt"
	case OpLessEqual:
		return "lte"
	case OpIn:
		return "in"
	case OpContains:
		return "contains"
	case OpExists:
		return "exists"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpNot:
		return "not"
	default:
		return "unknown"
	}
}

// Filter is a predicate over a payload: either a comparison against
// one field, or a combinator (And/Or/Not) over nested filters.
type Filter struct {
	Key      string
	Operator Operator
	Value    any
	Values   []any    // used by OpIn
	Sub      []Filter // used by OpAnd, OpOr and OpNot
}

// FilterSet is a conjunction of filters; a document matches when every
// filter matches.
type FilterSet struct {
	Filters []Filter
}

// NewFilterSet builds a FilterSet from individual filters.
func NewFilterSet(filters ...Filter) *FilterSet {
	return &FilterSet{Filters: filters}
}

// Equal creates an equality filter.
func Equal(key string, value any) Filter {
	return Filter{Key: key, Operator: OpEqual, Value: value}
}

// NotEqual creates an inequality filter.
func NotEqual(key string, value any) Filter {
	return Filter{Key: key, Operator: OpNotEqual, Value: value}
}

// GreaterThan creates a > filter.
func GreaterThan(key string, value any) Filter {
	return Filter{Key: key, Operator: OpGreaterThan, Value: value}
}

// GreaterEqual creates a >= filter.
func GreaterEqual(key string, value any) Filter {
	return Filter{Key: key, Operator: OpGreaterEqual, Value: value}
}

// LessThan creates a < filter.
func LessThan(key string, value any) Filter {
	return Filter{Key: key, Operator: OpLessThan, Value: value}
}

// LessEqual creates a <= filter.
func LessEqual(key string, value any) Filter {
	return Filter{Key: key, Operator: OpLessEqual, Value: value}
}

// In creates a membership filter.
func In(key string, values ...any) Filter {
	return Filter{Key: key, Operator: OpIn, Values: values}
}

// Contains creates a substring (for strings) or element (for arrays)
// containment filter.
func Contains(key string, value any) Filter {
	return Filter{Key: key, Operator: OpContains, Value: value}
}

// Exists creates a field-presence filter.
func Exists(key string) Filter {
	return Filter{Key: key, Operator: OpExists}
}

// And creates a conjunction over nested filters. An empty conjunction
// matches everything.
func And(filters ...Filter) Filter {
	return Filter{Operator: OpAnd, Sub: filters}
}

// Or creates a disjunction over nested filters. An empty disjunction
// matches nothing.
func Or(filters ...Filter) Filter {
	return Filter{Operator: OpOr, Sub: filters}
}

// Not negates a filter.
func Not(filter Filter) Filter {
	return Filter{Operator: OpNot, Sub: []Filter{filter}}
}

// Matches checks if the payload satisfies all filters in the set.
// A nil set matches everything.
func (fs *FilterSet) Matches(payload map[string]any) bool {
	if fs == nil {
		return true
	}
	for _, f := range fs.Filters {
		if !f.Matches(payload) {
			return false
		}
	}
	return true
}

// Matches checks if the payload satisfies the filter.
func (f Filter) Matches(payload map[string]any) bool {
	switch f.Operator {
	case OpAnd:
		for i := range f.Sub {
			if !f.Sub[i].Matches(payload) {
				return false
			}
		}
		return true
	case OpOr:
		for i := range f.Sub {
			if f.Sub[i].Matches(payload) {
				return true
			}
		}
		return false
	case OpNot:
		for i := range f.Sub {
			if f.Sub[i].Matches(payload) {
				return false
			}
		}
		return true
	}

	values := lookupPath(payload, f.Key)

	switch f.Operator {
	case OpExists:
		return len(values) > 0
	case OpNotEqual:
		// Vacuously true on absent fields, like the original engine.
		for _, v := range values {
			if compareEqual(v, f.Value) {
				return false
			}
		}
		return true
	}

	for _, v := range values {
		if f.matchesValue(v) {
			return true
		}
	}
	return false
}

func (f *Filter) matchesValue(v any) bool {
	switch f.Operator {
	case OpEqual:
		return compareEqual(v, f.Value)
	case OpGreaterThan:
		return compareLess(f.Value, v)
	case OpGreaterEqual:
		return compareLess(f.Value, v) || compareEqual(v, f.Value)
	case OpLessThan:
		return compareLess(v, f.Value)
	case OpLessEqual:
		return compareLess(v, f.Value) || compareEqual(v, f.Value)
	case OpIn:
		for _, cand := range f.Values {
			if compareEqual(v, cand) {
				return true
			}
		}
		return false
	case OpContains:
		return compareContains(v, f.Value)
	default:
		return false
	}
}

// lookupPath resolves a dotted path against a payload, descending into
// nested maps and fanning out over slices. It returns every leaf value
// the path reaches.
func lookupPath(payload map[string]any, path string) []any {
	if payload == nil {
		return nil
	}
	parts := strings.Split(path, ".")
	var out []any
	collect(payload, parts, &out)
	return out
}

func collect(v any, parts []string, out *[]any) {
	if len(parts) == 0 {
		*out = append(*out, v)
		return
	}
	switch t := v.(type) {
	case map[string]any:
		if next, ok := t[parts[0]]; ok {
			collect(next, parts[1:], out)
		}
	case []any:
		for _, item := range t {
			collect(item, parts, out)
		}
	}
}

func compareEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, oka := asFloat64(a); oka {
		fb, okb := asFloat64(b)
		return okb && fa == fb
	}
	switch ta := a.(type) {
	case string:
		tb, ok := b.(string)
		return ok && ta == tb
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb
	default:
		return false
	}
}

func compareLess(a, b any) bool {
	if fa, oka := asFloat64(a); oka {
		if fb, okb := asFloat64(b); okb {
			return fa < fb
		}
		return false
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return sa < sb
		}
	}
	return false
}

func compareContains(v, needle any) bool {
	switch t := v.(type) {
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(t, s)
	case []any:
		for _, item := range t {
			if compareEqual(item, needle) {
				return true
			}
		}
	}
	return false
}

func asFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
