package query

import (
	"testing"

	"meteor-store/internal/record"
	"meteor-store/internal/store"
)

func seedPeople(st *store.Store) {
	people := []map[string]any{
		{"id": 1, "name": "Ann", "age": 30, "city": "Oslo"},
		{"id": 2, "name": "Ben", "age": 25, "city": "Bergen"},
		{"id": 3, "name": "Cat", "age": 35, "city": "Oslo"},
	}
	for _, p := range people {
		rec := record.FromMap("people", p)
		st.Model("people").Put(p["id"], rec)
	}
}

func ids(records []*record.Record) []any {
	out := make([]any, len(records))
	for i, rec := range records {
		out[i], _ = rec.Field("id")
	}
	return out
}

func TestExecuteEquals(t *testing.T) {
	st := store.New()
	seedPeople(st)

	results := Execute("people", "id", Selector{"city": map[string]any{"equals": "Oslo"}}, st)
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	// Insertion order is preserved.
	got := ids(results)
	if got[0] != 1 || got[1] != 3 {
		t.Fatalf("expected [1 3], got %v", got)
	}
}

func TestExecuteScalarShorthand(t *testing.T) {
	st := store.New()
	seedPeople(st)

	results := Execute("people", "id", Selector{"name": "Ben"}, st)
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
}

func TestExecutePrimaryKeyFastPath(t *testing.T) {
	st := store.New()
	seedPeople(st)

	results := Execute("people", "id", Selector{"id": map[string]any{"equals": 2}}, st)
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
	if name, _ := results[0].Field("name"); name != "Ben" {
		t.Fatalf("expected Ben, got %v", name)
	}
}

func TestExecuteNotEqualsAndIn(t *testing.T) {
	st := store.New()
	seedPeople(st)

	results := Execute("people", "id", Selector{"city": map[string]any{"notEquals": "Oslo"}}, st)
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}

	results = Execute("people", "id", Selector{"id": map[string]any{"in": []any{1, 3}}}, st)
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}

	results = Execute("people", "id", Selector{"id": map[string]any{"notIn": []any{1, 3}}}, st)
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
}

func TestExecuteComparisons(t *testing.T) {
	st := store.New()
	seedPeople(st)

	cases := []struct {
		op      string
		operand any
		want    int
	}{
		{"gt", 25, 2},
		{"gte", 25, 3},
		{"lt", 30, 1},
		{"lte", 30, 2},
	}
	for _, tc := range cases {
		results := Execute("people", "id", Selector{"age": map[string]any{tc.op: tc.operand}}, st)
		if len(results) != tc.want {
			t.Fatalf("%s %v: expected %d matches, got %d", tc.op, tc.operand, tc.want, len(results))
		}
	}
}

func TestExecuteNumericTolerance(t *testing.T) {
	st := store.New()
	seedPeople(st)

	// JSON decodes numbers as float64; stored ids here are ints.
	results := Execute("people", "id", Selector{"age": map[string]any{"equals": float64(30)}}, st)
	if len(results) != 1 {
		t.Fatalf("expected 1 match across numeric types, got %d", len(results))
	}
}

func TestExecuteMixedNumericStringEquality(t *testing.T) {
	st := store.New()
	seedPeople(st)

	// Ids arrive as URL strings; stored values are numeric. Both
	// directions compare through the same normalization store keys use.
	results := Execute("people", "id", Selector{"age": map[string]any{"equals": "30"}}, st)
	if len(results) != 1 {
		t.Fatalf("expected string operand to match numeric field, got %d", len(results))
	}
	results = Execute("people", "id", Selector{"id": map[string]any{"notEquals": "2"}}, st)
	if len(results) != 2 {
		t.Fatalf("expected notEquals to exclude the numeric id, got %d", len(results))
	}
}

func TestExecuteLike(t *testing.T) {
	st := store.New()
	seedPeople(st)

	results := Execute("people", "id", Selector{"city": map[string]any{"like": "B%"}}, st)
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
	results = Execute("people", "id", Selector{"name": map[string]any{"like": "_a_"}}, st)
	if len(results) != 1 {
		t.Fatalf("expected 1 match for _a_, got %d", len(results))
	}
}

func TestExecuteNestedPath(t *testing.T) {
	st := store.New()
	rec := record.FromMap("orders", map[string]any{
		"id": 1,
		"shipping": map[string]any{
			"address": map[string]any{"country": "NO"},
		},
	})
	st.Model("orders").Put(1, rec)

	sel := Selector{
		"shipping": map[string]any{
			"address": map[string]any{
				"country": map[string]any{"equals": "NO"},
			},
		},
	}
	if len(Execute("orders", "id", sel, st)) != 1 {
		t.Fatal("expected nested path match")
	}

	sel["shipping"].(map[string]any)["address"].(map[string]any)["country"] = map[string]any{"equals": "SE"}
	if len(Execute("orders", "id", sel, st)) != 0 {
		t.Fatal("expected no match for SE")
	}
}

func TestExecuteThroughAccessor(t *testing.T) {
	st := store.New()
	target := record.FromMap("authors", map[string]any{"id": 7, "name": "Ann"})
	st.Model("authors").Put(7, target)

	book := record.FromMap("books", map[string]any{"id": 1, "title": "T"})
	book.Define([]string{"author"}, record.Accessor{
		Enumerable: true, Configurable: true,
		Get: func() any { return target },
	})
	st.Model("books").Put(1, book)

	sel := Selector{"author": map[string]any{"id": map[string]any{"equals": 7}}}
	if len(Execute("books", "id", sel, st)) != 1 {
		t.Fatal("expected match through live accessor")
	}
}

func TestExecuteListFanOut(t *testing.T) {
	st := store.New()
	rec := record.FromMap("books", map[string]any{
		"id":   1,
		"tags": []any{"scifi", "classic"},
	})
	st.Model("books").Put(1, rec)

	sel := Selector{"tags": map[string]any{"equals": "classic"}}
	if len(Execute("books", "id", sel, st)) != 1 {
		t.Fatal("expected any-element match on list value")
	}

	sel = Selector{"tags": map[string]any{"notEquals": "classic"}}
	if len(Execute("books", "id", sel, st)) != 0 {
		t.Fatal("expected notEquals to reject when any element matches")
	}
}

func TestExecuteUnknownModelAndNoMatch(t *testing.T) {
	st := store.New()
	seedPeople(st)

	if got := Execute("ghosts", "id", Selector{}, st); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice for unknown model, got %v", got)
	}
	results := Execute("people", "id", Selector{"name": map[string]any{"equals": "Zed"}}, st)
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", results)
	}
}

func TestExecuteAbsentField(t *testing.T) {
	st := store.New()
	seedPeople(st)

	if got := Execute("people", "id", Selector{"missing": map[string]any{"equals": 1}}, st); len(got) != 0 {
		t.Fatalf("expected no match on absent field, got %d", len(got))
	}
	// Negative operators pass on absent fields.
	if got := Execute("people", "id", Selector{"missing": map[string]any{"notEquals": 1}}, st); len(got) != 3 {
		t.Fatalf("expected all records for notEquals on absent field, got %d", len(got))
	}
}
