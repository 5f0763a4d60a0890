package metadata

type Field struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"` // string, text, int, bigint, decimal, boolean, uuid, timestamp, date, json
	Required bool     `json:"required,omitempty"`
	Unique   bool     `json:"unique,omitempty"`
	Default  any      `json:"default,omitempty"`
	Nullable bool     `json:"nullable,omitempty"`
	Enum     []string `json:"enum,omitempty"`
	Auto     string   `json:"auto,omitempty"` // "create" or "update"
}

// IsAuto returns true if the field is auto-managed by the engine.
func (f Field) IsAuto() bool {
	return f.Auto == "create" || f.Auto == "update"
}

// IsNumeric returns true for field types compared numerically by the
// query executor.
func (f Field) IsNumeric() bool {
	switch f.Type {
	case "int", "bigint", "decimal":
		return true
	}
	return false
}
