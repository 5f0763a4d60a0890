package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"meteor-store/internal/metadata"
	"meteor-store/internal/query"
	"meteor-store/internal/record"
	"meteor-store/internal/store"
)

// Factory constructs, updates and deletes entity instances, enforcing
// field validation and relational integrity on every write.
type Factory struct {
	store    *store.Store
	registry *metadata.Registry
}

func NewFactory(st *store.Store, reg *metadata.Registry) *Factory {
	return &Factory{store: st, registry: reg}
}

// Create validates the payload, runs rules, binds and resolves every
// declared relation, and inserts the record. The store is only touched
// after every validation has passed.
func (f *Factory) Create(entityName string, payload map[string]any) (*record.Record, error) {
	entity := f.registry.GetEntity(entityName)
	if entity == nil {
		return nil, UnknownEntityError(entityName)
	}

	fields := make(map[string]any)
	var details []ErrorDetail

	for _, field := range entity.WritableFields() {
		val, present := payload[field.Name]
		if !present || val == nil {
			if field.Default != nil {
				fields[field.Name] = field.Default
				continue
			}
			if field.Required {
				details = append(details, ErrorDetail{
					Field: field.Name, Rule: "required",
					Message: fmt.Sprintf("%s is required", field.Name),
				})
			}
			continue
		}
		if detail := checkEnum(&field, val); detail != nil {
			details = append(details, *detail)
			continue
		}
		fields[field.Name] = val
	}
	if len(details) > 0 {
		return nil, ValidationError(details)
	}

	pk, err := f.assignPrimaryKey(entity, payload, fields)
	if err != nil {
		return nil, err
	}

	// Unique field values are checked against siblings through the same
	// query executor used for reads.
	if detail := f.checkUniqueFields(entity, fields, nil); detail != nil {
		return nil, ValidationError([]ErrorDetail{*detail})
	}

	now := time.Now().UTC()
	for _, field := range entity.Fields {
		if field.IsAuto() {
			fields[field.Name] = now
		}
	}

	if errs := EvaluateRules(f.registry, entityName, "before_save", fields, map[string]any{}, true); len(errs) > 0 {
		return nil, ValidationError(errs)
	}

	rec := record.FromMap(entityName, fields)

	// Bind and resolve every declared relation. A relation with no
	// references supplied resolves with nil, so non-nullable relations
	// cannot be silently omitted.
	for i := range entity.Relations {
		def := &entity.Relations[i]
		rel := RelationFromDef(def)
		if err := rel.Apply(rec, def.PathSegments(), f.registry, f.store); err != nil {
			return nil, err
		}
		refs, _ := pathValue(payload, def.PathSegments())
		if err := rel.ResolveWith(rec, refs); err != nil {
			return nil, err
		}
		rec.Bind(def.Path, rel)
	}

	f.store.Model(entityName).Put(pk, rec)
	return rec, nil
}

// Update merges writable fields into an existing record and re-resolves
// any relation whose references appear in the payload. Re-resolution
// replaces the previous getter.
func (f *Factory) Update(entityName string, id string, payload map[string]any) (*record.Record, error) {
	entity := f.registry.GetEntity(entityName)
	if entity == nil {
		return nil, UnknownEntityError(entityName)
	}
	rec, ok := f.store.Model(entityName).Get(id)
	if !ok {
		return nil, NotFoundError(entityName, id)
	}

	old := rec.Snapshot()
	fields := make(map[string]any)
	var details []ErrorDetail

	for _, field := range entity.UpdatableFields() {
		val, present := payload[field.Name]
		if !present {
			continue
		}
		if val == nil && !field.Nullable {
			details = append(details, ErrorDetail{
				Field: field.Name, Rule: "nullable",
				Message: fmt.Sprintf("%s cannot be null", field.Name),
			})
			continue
		}
		if val != nil {
			if detail := checkEnum(&field, val); detail != nil {
				details = append(details, *detail)
				continue
			}
		}
		fields[field.Name] = val
	}
	if len(details) > 0 {
		return nil, ValidationError(details)
	}

	if detail := f.checkUniqueFields(entity, fields, id); detail != nil {
		return nil, ValidationError([]ErrorDetail{*detail})
	}

	// Rules see the merged record next to the old one.
	merged := make(map[string]any, len(old)+len(fields))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	if errs := EvaluateRules(f.registry, entityName, "before_save", merged, old, false); len(errs) > 0 {
		return nil, ValidationError(errs)
	}
	for _, r := range f.registry.GetRulesForEntity(entityName, "before_save") {
		if r.Type == "computed" {
			fields[r.Definition.Field] = merged[r.Definition.Field]
		}
	}

	// Re-resolve relations whose references were supplied, before any
	// field is written, so a failed resolution leaves the record's plain
	// fields untouched.
	for i := range entity.Relations {
		def := &entity.Relations[i]
		refs, supplied := pathValue(payload, def.PathSegments())
		if !supplied {
			continue
		}
		rel, err := f.relationFor(rec, def)
		if err != nil {
			return nil, err
		}
		if err := rel.ResolveWith(rec, refs); err != nil {
			return nil, err
		}
	}

	for k, v := range fields {
		rec.SetField(k, v)
	}
	for _, field := range entity.Fields {
		if field.Auto == "update" {
			rec.SetField(field.Name, time.Now().UTC())
		}
	}
	return rec, nil
}

// relationFor returns the relation instance bound to the record at
// creation, re-binding if the record predates the declaration.
func (f *Factory) relationFor(rec *record.Record, def *metadata.RelationDef) (*Relation, error) {
	if v, ok := rec.Binding(def.Path); ok {
		if rel, ok := v.(*Relation); ok {
			return rel, nil
		}
	}
	rel := RelationFromDef(def)
	if err := rel.Apply(rec, def.PathSegments(), f.registry, f.store); err != nil {
		return nil, err
	}
	rec.Bind(def.Path, rel)
	return rel, nil
}

// Delete removes the record. Live getters on other records observe the
// removal on their next read.
func (f *Factory) Delete(entityName string, id string) error {
	entity := f.registry.GetEntity(entityName)
	if entity == nil {
		return UnknownEntityError(entityName)
	}
	if !f.store.Model(entityName).Delete(id) {
		return NotFoundError(entityName, id)
	}
	return nil
}

// Fetch returns the record with the given primary key.
func (f *Factory) Fetch(entityName string, id string) (*record.Record, error) {
	entity := f.registry.GetEntity(entityName)
	if entity == nil {
		return nil, UnknownEntityError(entityName)
	}
	rec, ok := f.store.Model(entityName).Get(id)
	if !ok {
		return nil, NotFoundError(entityName, id)
	}
	return rec, nil
}

// ListOptions carries the parsed query surface of a List call.
type ListOptions struct {
	Selector query.Selector
	Sorts    []OrderClause
	Page     int
	PerPage  int
}

type OrderClause struct {
	Field string
	Dir   string // ASC or DESC
}

// List evaluates the selector, sorts, and paginates. Returns the page of
// records plus the total match count.
func (f *Factory) List(entityName string, opts ListOptions) ([]*record.Record, int, error) {
	entity := f.registry.GetEntity(entityName)
	if entity == nil {
		return nil, 0, UnknownEntityError(entityName)
	}

	matched := query.Execute(entityName, entity.PrimaryKey.Field, opts.Selector, f.store)
	total := len(matched)

	for i := len(opts.Sorts) - 1; i >= 0; i-- {
		clause := opts.Sorts[i]
		sort.SliceStable(matched, func(a, b int) bool {
			av, _ := matched[a].Field(clause.Field)
			bv, _ := matched[b].Field(clause.Field)
			less := lessValues(av, bv)
			if clause.Dir == "DESC" {
				return lessValues(bv, av)
			}
			return less
		})
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = 25
	}
	start := (page - 1) * perPage
	if start >= len(matched) {
		return []*record.Record{}, total, nil
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (f *Factory) assignPrimaryKey(entity *metadata.Entity, payload map[string]any, fields map[string]any) (any, error) {
	pkField := entity.PrimaryKey.Field
	col := f.store.Model(entity.Name)

	if entity.PrimaryKey.Generated {
		pk := uuid.New().String()
		fields[pkField] = pk
		return pk, nil
	}

	pk, ok := payload[pkField]
	if !ok || pk == nil {
		return nil, ValidationError([]ErrorDetail{{
			Field: pkField, Rule: "required",
			Message: fmt.Sprintf("%s is required", pkField),
		}})
	}
	if col.Has(pk) {
		return nil, ConflictError(fmt.Sprintf("%s with id %v already exists", entity.Name, pk))
	}
	fields[pkField] = pk
	return pk, nil
}

// checkUniqueFields scans siblings for colliding unique field values.
// excludeID is the current record's pk on update, nil on create.
func (f *Factory) checkUniqueFields(entity *metadata.Entity, fields map[string]any, excludeID any) *ErrorDetail {
	for _, field := range entity.Fields {
		if !field.Unique {
			continue
		}
		val, present := fields[field.Name]
		if !present || val == nil {
			continue
		}
		sel := query.Selector{field.Name: map[string]any{"equals": val}}
		if excludeID != nil {
			sel[entity.PrimaryKey.Field] = map[string]any{"notEquals": excludeID}
		}
		if len(query.Execute(entity.Name, entity.PrimaryKey.Field, sel, f.store)) > 0 {
			return &ErrorDetail{
				Field: field.Name, Rule: "unique",
				Message: fmt.Sprintf("%s must be unique", field.Name),
			}
		}
	}
	return nil
}

func checkEnum(field *metadata.Field, val any) *ErrorDetail {
	if len(field.Enum) == 0 {
		return nil
	}
	s, ok := val.(string)
	if !ok {
		return &ErrorDetail{
			Field: field.Name, Rule: "enum",
			Message: fmt.Sprintf("%s must be one of %v", field.Name, field.Enum),
		}
	}
	for _, allowed := range field.Enum {
		if s == allowed {
			return nil
		}
	}
	return &ErrorDetail{
		Field: field.Name, Rule: "enum",
		Message: fmt.Sprintf("%s must be one of %v", field.Name, field.Enum),
	}
}

// pathValue navigates a payload map along the given path.
func pathValue(payload map[string]any, path []string) (any, bool) {
	var current any = payload
	for _, seg := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func lessValues(a, b any) bool {
	if fa, ok := toFloat64(a); ok {
		if fb, ok := toFloat64(b); ok {
			return fa < fb
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Before(tb)
		}
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}
