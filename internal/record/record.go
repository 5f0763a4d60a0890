package record

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Accessor is a computed property definition. Get is invoked on every read
// of the property; the value is never stored on the record.
type Accessor struct {
	Enumerable   bool
	Configurable bool
	Get          func() any
}

// Record is a single entity instance: a bag of plain field values plus
// computed properties installed at (possibly nested) paths. Plain values
// and accessors share one namespace; an accessor shadows any plain value
// at the same path.
type Record struct {
	model     string
	fields    map[string]any
	accessors map[string]*Accessor // keyed by dotted path
	bindings  map[string]any       // opaque per-path state owned by the engine
}

// New creates an empty record for the given model.
func New(model string) *Record {
	return &Record{
		model:     model,
		fields:    make(map[string]any),
		accessors: make(map[string]*Accessor),
		bindings:  make(map[string]any),
	}
}

// Bind attaches opaque engine state to the given path. The engine keeps
// its applied relation instance here so later assignment events reuse it
// instead of re-binding.
func (r *Record) Bind(path string, v any) {
	r.bindings[path] = v
}

// Binding returns the opaque state attached at the path.
func (r *Record) Binding(path string) (any, bool) {
	v, ok := r.bindings[path]
	return v, ok
}

// FromMap creates a record pre-populated with the given top-level fields.
func FromMap(model string, fields map[string]any) *Record {
	r := New(model)
	for k, v := range fields {
		r.fields[k] = v
	}
	return r
}

// Model returns the declared model name of this record.
func (r *Record) Model() string {
	return r.model
}

// Set writes a plain value at the given path, creating intermediate
// containers as needed.
func (r *Record) Set(path []string, value any) {
	if len(path) == 0 {
		return
	}
	container := r.fields
	for _, seg := range path[:len(path)-1] {
		next, ok := container[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			container[seg] = next
		}
		container = next
	}
	container[path[len(path)-1]] = value
}

// SetField writes a plain top-level field.
func (r *Record) SetField(name string, value any) {
	r.fields[name] = value
}

// Field reads a top-level value, going through an accessor if one is
// installed at that name.
func (r *Record) Field(name string) (any, bool) {
	return r.Get([]string{name})
}

// Get reads the value at the given path. If an accessor is installed at
// the path or at any prefix of it, the accessor is invoked and the walk
// continues into its result, so reads are always live.
func (r *Record) Get(path []string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	for i := 1; i <= len(path); i++ {
		if acc, ok := r.accessors[joinPath(path[:i])]; ok {
			return navigate(acc.Get(), path[i:])
		}
	}
	var current any = r.fields
	return navigate(current, path)
}

// navigate walks the remaining path into plain containers and nested
// records.
func navigate(v any, path []string) (any, bool) {
	for _, seg := range path {
		switch c := v.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			v = next
		case *Record:
			next, ok := c.Get([]string{seg})
			if !ok {
				return nil, false
			}
			v = next
		default:
			return nil, false
		}
	}
	return v, true
}

// Define installs an accessor at the given path, replacing any previous
// accessor there. A previously installed non-configurable accessor refuses
// redefinition.
func (r *Record) Define(path []string, acc Accessor) error {
	if len(path) == 0 {
		return fmt.Errorf("define: empty path")
	}
	key := joinPath(path)
	if prev, ok := r.accessors[key]; ok && !prev.Configurable {
		return fmt.Errorf("define: property %s is not configurable", key)
	}
	// Materialize intermediate containers so the path is reachable even
	// before the accessor fires.
	if len(path) > 1 {
		container := r.fields
		for _, seg := range path[:len(path)-1] {
			next, ok := container[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				container[seg] = next
			}
			container = next
		}
	}
	r.accessors[key] = &acc
	return nil
}

// HasAccessor reports whether an accessor is installed at the path.
func (r *Record) HasAccessor(path []string) bool {
	_, ok := r.accessors[joinPath(path)]
	return ok
}

// Snapshot materializes the record as plain data: plain fields plus the
// current value of every enumerable accessor. Records returned by
// accessors are flattened to their plain fields (their own accessors are
// not followed, which keeps mutually-referencing models from recursing).
func (r *Record) Snapshot() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = snapshotValue(v)
	}
	for key, acc := range r.accessors {
		if !acc.Enumerable {
			continue
		}
		path := strings.Split(key, ".")
		container := out
		for _, seg := range path[:len(path)-1] {
			next, ok := container[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				container[seg] = next
			}
			container = next
		}
		container[path[len(path)-1]] = snapshotValue(acc.Get())
	}
	return out
}

func snapshotValue(v any) any {
	switch val := v.(type) {
	case *Record:
		if val == nil {
			return nil
		}
		return val.plainFields()
	case []*Record:
		out := make([]any, len(val))
		for i, rec := range val {
			out[i] = snapshotValue(rec)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = snapshotValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = snapshotValue(inner)
		}
		return out
	default:
		return v
	}
}

func (r *Record) plainFields() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = snapshotValue(v)
	}
	return out
}

// MarshalJSON serializes the snapshot, so enumerable computed properties
// appear in API responses.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Snapshot())
}

func joinPath(path []string) string {
	return strings.Join(path, ".")
}

// ParsePath splits a dotted property path into segments.
func ParsePath(path string) []string {
	return strings.Split(path, ".")
}
