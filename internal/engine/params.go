package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"meteor-store/internal/metadata"
	"meteor-store/internal/query"
)

// opNames maps the query-param operator suffixes to selector operators.
var opNames = map[string]string{
	"eq":     "equals",
	"neq":    "notEquals",
	"in":     "in",
	"not_in": "notIn",
	"gt":     "gt",
	"gte":    "gte",
	"lt":     "lt",
	"lte":    "lte",
	"like":   "like",
}

// ParseQueryParams parses Fiber query parameters into list options:
// filter[field.op]=val filters, sort=-created_at,name, page/per_page.
// Dotted filter fields address nested paths, so filter[author.id]=1
// matches through a relation's live value.
func ParseQueryParams(c *fiber.Ctx, entity *metadata.Entity) (*ListOptions, error) {
	opts := &ListOptions{
		Selector: query.Selector{},
		Page:     1,
		PerPage:  25,
	}

	queries := c.Queries()
	for key, val := range queries {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		inner := key[7 : len(key)-1]
		path, op := parseFilterKey(inner)

		if entity.GetRelation(path[0]) == nil && !entity.HasField(path[0]) {
			return nil, NewAppError("UNKNOWN_FIELD", 400,
				fmt.Sprintf("Unknown filter field: %s", path[0]))
		}

		operand, err := coerceValue(entity, path, val, op)
		if err != nil {
			return nil, NewAppError("INVALID_PAYLOAD", 400,
				fmt.Sprintf("Invalid filter value for %s: %v", strings.Join(path, "."), err))
		}

		addCondition(opts.Selector, path, op, operand)
	}

	if sortParam := c.Query("sort"); sortParam != "" {
		for _, part := range strings.Split(sortParam, ",") {
			part = strings.TrimSpace(part)
			dir := "ASC"
			field := part
			if strings.HasPrefix(part, "-") {
				dir = "DESC"
				field = part[1:]
			}
			if !entity.HasField(field) {
				return nil, NewAppError("UNKNOWN_FIELD", 400,
					fmt.Sprintf("Unknown sort field: %s", field))
			}
			opts.Sorts = append(opts.Sorts, OrderClause{Field: field, Dir: dir})
		}
	}

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			opts.Page = v
		}
	}
	if pp := c.Query("per_page"); pp != "" {
		if v, err := strconv.Atoi(pp); err == nil && v > 0 {
			opts.PerPage = v
			if opts.PerPage > 100 {
				opts.PerPage = 100
			}
		}
	}

	return opts, nil
}

// addCondition installs {op: operand} at the (possibly nested) path in
// the selector tree.
func addCondition(sel query.Selector, path []string, op string, operand any) {
	container := map[string]any(sel)
	for _, seg := range path[:len(path)-1] {
		next, ok := container[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			container[seg] = next
		}
		container = next
	}
	leaf, ok := container[path[len(path)-1]].(map[string]any)
	if !ok {
		leaf = make(map[string]any)
		container[path[len(path)-1]] = leaf
	}
	leaf[op] = operand
}

// parseFilterKey splits "total.gte" into (["total"], "gte"), "status"
// into (["status"], "equals") and "author.id" into (["author","id"],
// "equals"). Only a trailing segment naming a known operator is treated
// as one.
func parseFilterKey(key string) ([]string, string) {
	parts := strings.Split(key, ".")
	if len(parts) > 1 {
		if op, ok := opNames[parts[len(parts)-1]]; ok {
			return parts[:len(parts)-1], op
		}
	}
	return parts, "equals"
}

// coerceValue converts string query param values to appropriate Go types
// based on field metadata. Nested paths beyond the entity's own fields
// stay strings; the executor compares them type-tolerantly.
func coerceValue(entity *metadata.Entity, path []string, val string, op string) (any, error) {
	var field *metadata.Field
	if len(path) == 1 {
		field = entity.GetField(path[0])
	}

	if op == "in" || op == "notIn" {
		parts := strings.Split(val, ",")
		coerced := make([]any, len(parts))
		for i, p := range parts {
			v, err := coerceSingleValue(field, strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			coerced[i] = v
		}
		return coerced, nil
	}

	return coerceSingleValue(field, val)
}

func coerceSingleValue(field *metadata.Field, val string) (any, error) {
	if field == nil {
		return val, nil
	}
	switch field.Type {
	case "int":
		return strconv.Atoi(val)
	case "bigint":
		return strconv.ParseInt(val, 10, 64)
	case "decimal":
		return strconv.ParseFloat(val, 64)
	case "boolean":
		return strconv.ParseBool(val)
	default:
		return val, nil
	}
}
