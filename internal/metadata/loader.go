package metadata

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// LoadAll reads all entity definitions from the schema directory and
// populates the registry. Each *.json file holds one entity definition;
// an optional rules.json holds the rule list. Invalid files are skipped
// with a warning so one bad definition does not take the whole schema
// down.
func LoadAll(dir string, reg *Registry) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}

	var entities []*Entity
	var rules []*Rule

	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		if f.Name() == "rules.json" {
			var fileRules []*Rule
			if err := json.Unmarshal(data, &fileRules); err != nil {
				log.Printf("WARN: skipping rules.json (invalid JSON): %v", err)
				continue
			}
			rules = append(rules, fileRules...)
			continue
		}

		var entity Entity
		if err := json.Unmarshal(data, &entity); err != nil {
			log.Printf("WARN: skipping entity file %s (invalid JSON): %v", f.Name(), err)
			continue
		}
		if entity.Name == "" {
			log.Printf("WARN: skipping entity file %s (missing name)", f.Name())
			continue
		}
		entities = append(entities, &entity)
	}

	reg.Load(entities)
	reg.LoadRules(rules)

	log.Printf("Loaded %d entities, %d rules into registry", len(entities), len(rules))
	return nil
}
