package query

import (
	"fmt"
	"regexp"
	"strings"

	"meteor-store/internal/record"
	"meteor-store/internal/store"
)

// Selector is a filter predicate tree. Each key names a field; its value
// is either an operator map like {"equals": v}, a nested selector
// mirroring a nested property path, or a bare scalar (shorthand for
// equals).
type Selector map[string]any

var operators = map[string]bool{
	"equals":    true,
	"notEquals": true,
	"in":        true,
	"notIn":     true,
	"gt":        true,
	"gte":       true,
	"lt":        true,
	"lte":       true,
	"like":      true,
}

// Execute evaluates the selector against every record of the model and
// returns the matches in insertion order. An unknown model or an empty
// match set yields an empty slice, never an error.
func Execute(model string, pkField string, sel Selector, st *store.Store) []*record.Record {
	col := st.Model(model)

	// Fast path: a bare equality on the primary key is a direct lookup.
	if pk, ok := pkEqualsOnly(sel, pkField); ok {
		if rec, found := col.Get(pk); found {
			return []*record.Record{rec}
		}
		return []*record.Record{}
	}

	matched := []*record.Record{}
	for _, rec := range col.Records() {
		if matchContainer(rec, sel) {
			matched = append(matched, rec)
		}
	}
	return matched
}

// pkEqualsOnly detects a selector of the form {pk: {equals: v}} or {pk: v}.
func pkEqualsOnly(sel Selector, pkField string) (any, bool) {
	if len(sel) != 1 {
		return nil, false
	}
	spec, ok := sel[pkField]
	if !ok {
		return nil, false
	}
	if cond, isMap := spec.(map[string]any); isMap {
		if len(cond) == 1 {
			if v, hasEq := cond["equals"]; hasEq {
				return v, true
			}
		}
		return nil, false
	}
	return spec, true
}

// matchContainer evaluates a selector against a record or plain map.
func matchContainer(container any, sel map[string]any) bool {
	for field, spec := range sel {
		values, found := lookup(container, field)

		cond, isMap := spec.(map[string]any)
		switch {
		case isMap && isCondition(cond):
			if !matchCondition(values, found, cond) {
				return false
			}
		case isMap:
			// Nested selector: any candidate container may satisfy it.
			if !found || !anyContainerMatches(values, cond) {
				return false
			}
		default:
			if !found || !anyEquals(values, spec) {
				return false
			}
		}
	}
	return true
}

func isCondition(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !operators[k] {
			return false
		}
	}
	return true
}

// lookup reads one field from a record or map, fanning out over list
// values so that list-valued associations match element-wise.
func lookup(container any, field string) ([]any, bool) {
	var v any
	var ok bool
	switch c := container.(type) {
	case *record.Record:
		v, ok = c.Field(field)
	case map[string]any:
		v, ok = c[field]
	default:
		return nil, false
	}
	if !ok {
		return nil, false
	}
	switch list := v.(type) {
	case []*record.Record:
		out := make([]any, len(list))
		for i, rec := range list {
			out[i] = rec
		}
		return out, true
	case []any:
		return list, true
	default:
		return []any{v}, true
	}
}

func anyContainerMatches(values []any, sel map[string]any) bool {
	for _, v := range values {
		switch v.(type) {
		case *record.Record, map[string]any:
			if matchContainer(v, sel) {
				return true
			}
		}
	}
	return false
}

// anyEquals is the scalar-shorthand match: {field: v} holds when any
// candidate value equals v.
func anyEquals(values []any, operand any) bool {
	for _, v := range values {
		if equalValues(v, operand) {
			return true
		}
	}
	return false
}

func matchCondition(values []any, found bool, cond map[string]any) bool {
	for op, operand := range cond {
		if !applyOperator(values, found, op, operand) {
			return false
		}
	}
	return true
}

// applyOperator applies one operator over the candidate values. Positive
// operators match if any candidate satisfies them; notEquals and notIn
// require every candidate to differ. An absent field fails positive
// operators and passes the negative ones.
func applyOperator(values []any, found bool, op string, operand any) bool {
	switch op {
	case "notEquals":
		if !found {
			return true
		}
		for _, v := range values {
			if equalValues(v, operand) {
				return false
			}
		}
		return true
	case "notIn":
		if !found {
			return true
		}
		for _, v := range values {
			if containsValue(operand, v) {
				return false
			}
		}
		return true
	}

	if !found {
		return false
	}
	for _, v := range values {
		if applySingle(v, op, operand) {
			return true
		}
	}
	return false
}

func applySingle(v any, op string, operand any) bool {
	switch op {
	case "equals":
		return equalValues(v, operand)
	case "in":
		return containsValue(operand, v)
	case "gt", "gte", "lt", "lte":
		a, okA := toFloat64(v)
		b, okB := toFloat64(operand)
		if !okA || !okB {
			return false
		}
		switch op {
		case "gt":
			return a > b
		case "gte":
			return a >= b
		case "lt":
			return a < b
		default:
			return a <= b
		}
	case "like":
		s, okS := v.(string)
		pattern, okP := operand.(string)
		if !okS || !okP {
			return false
		}
		return likeMatch(pattern, s)
	}
	return false
}

// equalValues compares two values, unifying numeric types and otherwise
// falling back to their string forms.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	fa, okA := toFloat64(a)
	fb, okB := toFloat64(b)
	if okA && okB {
		return fa == fb
	}
	// Mixed numeric/string operands compare through their string forms,
	// the same normalization store.Key uses.
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func containsValue(operand any, v any) bool {
	switch list := operand.(type) {
	case []any:
		for _, candidate := range list {
			if equalValues(v, candidate) {
				return true
			}
		}
	case []string:
		for _, candidate := range list {
			if equalValues(v, candidate) {
				return true
			}
		}
	}
	return false
}

// likeMatch implements SQL LIKE semantics: % matches any run, _ matches
// one character.
func likeMatch(pattern, s string) bool {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	matched, err := regexp.MatchString(sb.String(), s)
	return err == nil && matched
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
