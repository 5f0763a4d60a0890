package metadata

// RuleDefinition is the JSON content of a rule.
type RuleDefinition struct {
	// Field rules
	Field    string `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value,omitempty"`

	// Expression / computed rules
	Expression string `json:"expression,omitempty"`

	// Shared
	Message    string `json:"message,omitempty"`
	StopOnFail bool   `json:"stop_on_fail,omitempty"`
}

// Rule represents a validation or computed rule attached to an entity.
type Rule struct {
	ID         string         `json:"id"`
	Entity     string         `json:"entity"`
	Hook       string         `json:"hook"`
	Type       string         `json:"type"` // "field", "expression", "computed"
	Definition RuleDefinition `json:"definition"`
	Priority   int            `json:"priority"`
	Active     bool           `json:"active"`

	// Compiled holds the compiled expression program (set lazily, not serialized).
	Compiled any `json:"-"`
}
