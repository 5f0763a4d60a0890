package engine

import (
	"strings"

	"meteor-store/internal/metadata"
	"meteor-store/internal/query"
	"meteor-store/internal/record"
	"meteor-store/internal/store"
)

// RelationAttributes control the integrity constraints of a relation.
// Immutable once the relation is constructed.
type RelationAttributes struct {
	Nullable bool
	Unique   bool
}

// RelationSource identifies which entity hosts the relation and at what
// property path. Set once, during Apply.
type RelationSource struct {
	Model      string
	PrimaryKey any
	Path       []string
}

// RelationTarget names the referenced model. PrimaryKey stays empty until
// Apply resolves it from the registry, and is immutable afterwards.
type RelationTarget struct {
	Model      string
	PrimaryKey string
}

// Relation is the runtime binder and value resolver for one declared
// association. A relation is declared once per (model, property path) in
// the schema and cloned per entity instance before Apply, so source
// identity is never shared across entities.
type Relation struct {
	Kind       metadata.RelationKind
	Attributes RelationAttributes

	source   *RelationSource
	target   RelationTarget
	registry *metadata.Registry
	store    *store.Store
}

// NewRelation constructs an unapplied relation. The target model is not
// validated here: schemas may reference models declared later, so
// existence is deferred to Apply.
func NewRelation(target string, kind metadata.RelationKind, attrs *RelationAttributes) *Relation {
	r := &Relation{
		Kind:   kind,
		target: RelationTarget{Model: target},
	}
	if attrs != nil {
		r.Attributes = *attrs
	}
	return r
}

// RelationFromDef builds a runtime relation from a schema declaration.
func RelationFromDef(def *metadata.RelationDef) *Relation {
	return NewRelation(def.Target, def.Kind, &RelationAttributes{
		Nullable: def.Nullable,
		Unique:   def.Unique,
	})
}

// Clone returns a fresh unapplied relation with the same declaration.
// The factory clones the schema-level relation for every entity instance.
func (r *Relation) Clone() *Relation {
	return &Relation{
		Kind:       r.Kind,
		Attributes: r.Attributes,
		target:     RelationTarget{Model: r.target.Model},
	}
}

// Applied reports whether Apply has bound this relation to an entity.
func (r *Relation) Applied() bool {
	return r.source != nil
}

// Target returns the relation target. The primary-key field is only
// filled in after a successful Apply.
func (r *Relation) Target() RelationTarget {
	return r.target
}

// Apply binds the relation to a concrete entity at the given property
// path: it captures the source identity and resolves the target model's
// primary-key field from the registry. It touches no store state.
func (r *Relation) Apply(rec *record.Record, path []string, reg *metadata.Registry, st *store.Store) error {
	srcPK, ok := reg.FindPrimaryKey(rec.Model())
	if !ok {
		return TargetUnresolvableError(rec.Model())
	}
	pkValue, _ := rec.Field(srcPK)

	targetPK, ok := reg.FindPrimaryKey(r.target.Model)
	if !ok {
		return TargetUnresolvableError(r.target.Model)
	}

	r.source = &RelationSource{
		Model:      rec.Model(),
		PrimaryKey: pkValue,
		Path:       path,
	}
	r.target.PrimaryKey = targetPK
	r.registry = reg
	r.store = st
	return nil
}

// ResolveWith validates the given references against the store and
// installs the live getter for the association property. references is
// nil, a single reference, or a list of references; each reference is any
// value exposing the target model's primary-key field. On any failure the
// entity is left untouched: no getter is installed.
func (r *Relation) ResolveWith(rec *record.Record, references any) error {
	if r.source == nil {
		return NotAppliedError(r.target.Model)
	}

	if references == nil {
		if !r.Attributes.Nullable {
			return NullNotAllowedError(r.source.Model, joinSegments(r.source.Path))
		}
		return r.setValueResolver(rec, func() any { return nil })
	}

	// Should not happen after a successful Apply, but guards misuse.
	if r.target.PrimaryKey == "" {
		return TargetKeyMissingError(r.target.Model)
	}

	refs := normalizeReferences(references)

	// Every reference must name a record that actually lives in the
	// target store. Record-shaped plain data that was never created is
	// rejected here.
	targetCol := r.store.Model(r.target.Model)
	keys := make([]any, 0, len(refs))
	for _, ref := range refs {
		pk, ok := referenceKey(ref, r.target.PrimaryKey)
		if !ok || !targetCol.Has(pk) {
			return DanglingReferenceError(r.target.Model, pk)
		}
		keys = append(keys, pk)
	}

	if r.Attributes.Unique {
		if err := r.checkUniqueness(keys); err != nil {
			return err
		}
	}

	return r.installGetter(rec, keys)
}

// checkUniqueness re-queries sibling entities of the source model through
// the same query executor ordinary reads use, so the uniqueness invariant
// and general querying share one consistency model.
func (r *Relation) checkUniqueness(keys []any) error {
	srcPKField, ok := r.registry.FindPrimaryKey(r.source.Model)
	if !ok {
		return TargetUnresolvableError(r.source.Model)
	}

	// Nested selector mirroring the property path, ending at the target
	// primary-key field.
	leaf := map[string]any{r.target.PrimaryKey: map[string]any{"in": keys}}
	for i := len(r.source.Path) - 1; i > 0; i-- {
		leaf = map[string]any{r.source.Path[i]: leaf}
	}
	sel := query.Selector{
		r.source.Path[0]: leaf,
		srcPKField:       map[string]any{"notEquals": r.source.PrimaryKey},
	}

	siblings := query.Execute(r.source.Model, srcPKField, sel, r.store)
	for _, sibling := range siblings {
		claimed, ok := r.claimedKey(sibling, keys)
		if !ok {
			continue
		}
		ownerID, _ := sibling.Field(srcPKField)
		return UniquenessViolationError(r.target.Model, claimed, ownerID)
	}
	return nil
}

// claimedKey returns the first of the given target keys that the sibling
// entity references at the relation's property path.
func (r *Relation) claimedKey(sibling *record.Record, keys []any) (any, bool) {
	v, ok := sibling.Get(r.source.Path)
	if !ok || v == nil {
		return nil, false
	}
	var candidates []any
	switch resolved := v.(type) {
	case []*record.Record:
		for _, t := range resolved {
			if pk, ok := referenceKey(t, r.target.PrimaryKey); ok {
				candidates = append(candidates, pk)
			}
		}
	default:
		if pk, ok := referenceKey(resolved, r.target.PrimaryKey); ok {
			candidates = append(candidates, pk)
		}
	}
	for _, key := range keys {
		for _, c := range candidates {
			if store.Key(c) == store.Key(key) {
				return key, true
			}
		}
	}
	return nil, false
}

// installGetter installs the live accessor. Reads re-query the target
// store per reference in reference order; a cached value would silently
// diverge from store state under later mutation, so nothing is cached.
// Existence is not re-validated on read: a reference whose target was
// deleted simply drops out of the result.
func (r *Relation) installGetter(rec *record.Record, keys []any) error {
	targetModel := r.target.Model
	targetPK := r.target.PrimaryKey
	st := r.store
	oneOf := r.Kind == metadata.RelationOneOf

	return r.setValueResolver(rec, func() any {
		results := make([]*record.Record, 0, len(keys))
		for _, key := range keys {
			sel := query.Selector{targetPK: map[string]any{"equals": key}}
			results = append(results, query.Execute(targetModel, targetPK, sel, st)...)
		}
		if oneOf {
			if len(results) == 0 {
				return nil
			}
			return results[0]
		}
		return results
	})
}

// setValueResolver installs fn as the current getter at the source
// property path, replacing any previous getter there. The property is
// enumerable (it appears in snapshots and JSON) and configurable (a later
// ResolveWith replaces it).
func (r *Relation) setValueResolver(rec *record.Record, fn func() any) error {
	return rec.Define(r.source.Path, record.Accessor{
		Enumerable:   true,
		Configurable: true,
		Get:          fn,
	})
}

// normalizeReferences flattens the caller-supplied references into a list.
func normalizeReferences(references any) []any {
	switch v := references.(type) {
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	case []*record.Record:
		out := make([]any, len(v))
		for i, rec := range v {
			out[i] = rec
		}
		return out
	default:
		return []any{references}
	}
}

// referenceKey extracts the target primary-key value from a reference.
// References are duck-typed: anything exposing the key field works.
func referenceKey(ref any, pkField string) (any, bool) {
	switch v := ref.(type) {
	case *record.Record:
		return v.Field(pkField)
	case map[string]any:
		pk, ok := v[pkField]
		return pk, ok
	default:
		return nil, false
	}
}

func joinSegments(path []string) string {
	return strings.Join(path, ".")
}
