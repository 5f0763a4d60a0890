package engine

import (
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gofiber/fiber/v2"

	"meteor-store/internal/metadata"
	"meteor-store/internal/query"
)

func paramsEntity() *metadata.Entity {
	return &metadata.Entity{
		Name:       "orders",
		PrimaryKey: metadata.PrimaryKey{Field: "id", Type: "int"},
		Fields: []metadata.Field{
			{Name: "id", Type: "int"},
			{Name: "status", Type: "string"},
			{Name: "total", Type: "decimal"},
			{Name: "paid", Type: "boolean"},
		},
		Relations: []metadata.RelationDef{
			{Path: "customer", Target: "customers", Kind: metadata.RelationOneOf},
		},
	}
}

func TestParseFilterKey(t *testing.T) {
	cases := []struct {
		key  string
		path []string
		op   string
	}{
		{"status", []string{"status"}, "equals"},
		{"total.gte", []string{"total"}, "gte"},
		{"status.neq", []string{"status"}, "notEquals"},
		{"status.in", []string{"status"}, "in"},
		{"customer.id", []string{"customer", "id"}, "equals"},
		{"customer.id.eq", []string{"customer", "id"}, "equals"},
		{"customer.tier.like", []string{"customer", "tier"}, "like"},
	}
	for _, tc := range cases {
		path, op := parseFilterKey(tc.key)
		if !reflect.DeepEqual(path, tc.path) || op != tc.op {
			t.Fatalf("parseFilterKey(%q) = %v, %q; want %v, %q", tc.key, path, op, tc.path, tc.op)
		}
	}
}

func TestAddConditionNested(t *testing.T) {
	sel := query.Selector{}
	addCondition(sel, []string{"total"}, "gte", float64(10))
	addCondition(sel, []string{"total"}, "lt", float64(100))
	addCondition(sel, []string{"customer", "id"}, "equals", 7)

	want := query.Selector{
		"total": map[string]any{"gte": float64(10), "lt": float64(100)},
		"customer": map[string]any{
			"id": map[string]any{"equals": 7},
		},
	}
	if !reflect.DeepEqual(sel, want) {
		t.Fatalf("selector = %#v, want %#v", sel, want)
	}
}

func TestCoerceValue(t *testing.T) {
	entity := paramsEntity()

	v, err := coerceValue(entity, []string{"total"}, "19.5", "gte")
	if err != nil {
		t.Fatalf("coerce decimal: %v", err)
	}
	if v != 19.5 {
		t.Fatalf("expected 19.5, got %v", v)
	}

	v, err = coerceValue(entity, []string{"id"}, "1,2,3", "in")
	if err != nil {
		t.Fatalf("coerce in-list: %v", err)
	}
	if !reflect.DeepEqual(v, []any{1, 2, 3}) {
		t.Fatalf("expected [1 2 3], got %v", v)
	}

	v, err = coerceValue(entity, []string{"paid"}, "true", "equals")
	if err != nil {
		t.Fatalf("coerce boolean: %v", err)
	}
	if v != true {
		t.Fatalf("expected true, got %v", v)
	}

	// Nested paths are not coerced; the executor compares type-tolerantly.
	v, err = coerceValue(entity, []string{"customer", "id"}, "7", "equals")
	if err != nil {
		t.Fatalf("coerce nested: %v", err)
	}
	if v != "7" {
		t.Fatalf("expected string passthrough for nested path, got %v", v)
	}

	if _, err := coerceValue(entity, []string{"id"}, "abc", "equals"); err == nil {
		t.Fatal("expected error coercing 'abc' to int")
	}
}

// parseVia runs ParseQueryParams inside a real fiber handler so query
// parsing behaves exactly as it does in production.
func parseVia(t *testing.T, target string) (*ListOptions, error) {
	t.Helper()
	var opts *ListOptions
	var parseErr error

	app := fiber.New()
	app.Get("/orders", func(c *fiber.Ctx) error {
		opts, parseErr = ParseQueryParams(c, paramsEntity())
		return nil
	})

	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	resp.Body.Close()
	return opts, parseErr
}

func TestParseQueryParams(t *testing.T) {
	opts, err := parseVia(t, "/orders?filter[total.gte]=10&filter[status]=paid&sort=-total,status&page=2&per_page=10")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	wantSel := query.Selector{
		"total":  map[string]any{"gte": float64(10)},
		"status": map[string]any{"equals": "paid"},
	}
	if !reflect.DeepEqual(opts.Selector, wantSel) {
		t.Fatalf("selector = %#v, want %#v", opts.Selector, wantSel)
	}

	wantSorts := []OrderClause{{Field: "total", Dir: "DESC"}, {Field: "status", Dir: "ASC"}}
	if !reflect.DeepEqual(opts.Sorts, wantSorts) {
		t.Fatalf("sorts = %v, want %v", opts.Sorts, wantSorts)
	}
	if opts.Page != 2 || opts.PerPage != 10 {
		t.Fatalf("page/per_page = %d/%d, want 2/10", opts.Page, opts.PerPage)
	}
}

func TestParseQueryParamsDefaults(t *testing.T) {
	opts, err := parseVia(t, "/orders")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(opts.Selector) != 0 {
		t.Fatalf("expected empty selector, got %v", opts.Selector)
	}
	if opts.Page != 1 || opts.PerPage != 25 {
		t.Fatalf("page/per_page = %d/%d, want defaults 1/25", opts.Page, opts.PerPage)
	}
}

func TestParseQueryParamsRelationFilter(t *testing.T) {
	opts, err := parseVia(t, "/orders?filter[customer.id]=7")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := query.Selector{
		"customer": map[string]any{
			"id": map[string]any{"equals": "7"},
		},
	}
	if !reflect.DeepEqual(opts.Selector, want) {
		t.Fatalf("selector = %#v, want %#v", opts.Selector, want)
	}
}

func TestParseQueryParamsRejectsUnknownField(t *testing.T) {
	_, err := parseVia(t, "/orders?filter[bogus]=1")
	if err == nil {
		t.Fatal("expected error for unknown filter field")
	}
	appErr, ok := err.(*AppError)
	if !ok || appErr.Code != "UNKNOWN_FIELD" {
		t.Fatalf("expected UNKNOWN_FIELD, got %v", err)
	}

	if _, err := parseVia(t, "/orders?sort=bogus"); err == nil {
		t.Fatal("expected error for unknown sort field")
	}
}

func TestParseQueryParamsCapsPerPage(t *testing.T) {
	opts, err := parseVia(t, "/orders?per_page=5000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.PerPage != 100 {
		t.Fatalf("per_page = %d, want cap 100", opts.PerPage)
	}
}
