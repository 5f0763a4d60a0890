package metadata

type Entity struct {
	Name       string        `json:"name"`
	PrimaryKey PrimaryKey    `json:"primary_key"`
	Fields     []Field       `json:"fields"`
	Relations  []RelationDef `json:"relations,omitempty"`
}

type PrimaryKey struct {
	Field     string `json:"field"`
	Type      string `json:"type"` // uuid, int, bigint, string
	Generated bool   `json:"generated"`
}

// GetField returns a pointer to the field with the given name, or nil.
func (e *Entity) GetField(name string) *Field {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the entity has a field with the given name.
func (e *Entity) HasField(name string) bool {
	return e.GetField(name) != nil
}

// FieldNames returns all field names.
func (e *Entity) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// WritableFields returns fields that can be set by the client.
// Excludes auto-generated PKs and auto-timestamp fields.
func (e *Entity) WritableFields() []Field {
	var fields []Field
	for _, f := range e.Fields {
		if f.Name == e.PrimaryKey.Field && e.PrimaryKey.Generated {
			continue
		}
		if f.IsAuto() {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// UpdatableFields returns fields that can be set on update.
// Excludes the PK and auto-managed fields.
func (e *Entity) UpdatableFields() []Field {
	var fields []Field
	for _, f := range e.Fields {
		if f.Name == e.PrimaryKey.Field {
			continue
		}
		if f.IsAuto() {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// GetRelation returns the relation declared at the given property path,
// or nil.
func (e *Entity) GetRelation(path string) *RelationDef {
	for i := range e.Relations {
		if e.Relations[i].Path == path {
			return &e.Relations[i]
		}
	}
	return nil
}
