package metadata

import "strings"

// RelationKind distinguishes single-reference from list-valued
// associations.
type RelationKind string

// A one_of relation holds a single reference to the target model, a
// many_of relation holds a list of references.
const (
	RelationOneOf  RelationKind = "one_of"
	RelationManyOf RelationKind = "many_of"
)

// RelationDef is the declarative association placeholder carried by an
// entity schema. The engine turns it into a runtime relation when an
// entity instance is constructed. Target existence is deliberately not
// checked at declaration time so mutually-referencing models can be
// declared in any order.
type RelationDef struct {
	Path     string       `json:"path"` // property path hosting the relation, dotted for nesting
	Target   string       `json:"target"`
	Kind     RelationKind `json:"kind"`
	Nullable bool         `json:"nullable,omitempty"`
	Unique   bool         `json:"unique,omitempty"`
}

func (r *RelationDef) IsOneOf() bool {
	return r.Kind == RelationOneOf
}

func (r *RelationDef) IsManyOf() bool {
	return r.Kind == RelationManyOf
}

// PathSegments splits the dotted property path into its segments.
func (r *RelationDef) PathSegments() []string {
	return strings.Split(r.Path, ".")
}
