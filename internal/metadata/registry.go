package metadata

import (
	"sort"
	"sync"
)

// Registry is the dictionary of model schemas, plus the rules attached to
// them. It is the single source of truth the engine consults when
// resolving relations.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
	rules    map[string][]*Rule // keyed by entity name
}

func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*Entity),
		rules:    make(map[string][]*Rule),
	}
}

// GetEntity returns the entity with the given name, or nil.
func (r *Registry) GetEntity(name string) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[name]
}

// AllEntities returns all registered entities.
func (r *Registry) AllEntities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entities := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		entities = append(entities, e)
	}
	return entities
}

// FindPrimaryKey returns the primary-key field name of the given model.
// The second return is false when the model is unknown or declares no
// primary key.
func (r *Registry) FindPrimaryKey(model string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.entities[model]
	if e == nil || e.PrimaryKey.Field == "" {
		return "", false
	}
	return e.PrimaryKey.Field, true
}

// Load replaces all entities in the registry.
// Called during startup and after schema mutations.
func (r *Registry) Load(entities []*Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = make(map[string]*Entity, len(entities))
	for _, e := range entities {
		r.entities[e.Name] = e
	}
}

// LoadRules replaces all rules in the registry.
func (r *Registry) LoadRules(rules []*Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = make(map[string][]*Rule)
	for _, rule := range rules {
		r.rules[rule.Entity] = append(r.rules[rule.Entity], rule)
	}
}

// GetRulesForEntity returns the active rules for an entity/hook pair,
// in priority order.
func (r *Registry) GetRulesForEntity(entity string, hook string) []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Rule
	for _, rule := range r.rules[entity] {
		if rule.Active && rule.Hook == hook {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}
