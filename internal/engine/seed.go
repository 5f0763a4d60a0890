package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
)

// SeedBatch is one entry of a seed file: an entity name and the records
// to create for it. Batches run in file order so referenced targets can
// be created before the entities that reference them.
type SeedBatch struct {
	Entity  string           `json:"entity"`
	Records []map[string]any `json:"records"`
}

// LoadSeed creates records from a JSON seed file through the factory, so
// seed data passes the same validation and relation resolution as API
// writes. Individual record failures are logged and skipped.
func LoadSeed(path string, f *Factory) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var batches []SeedBatch
	if err := json.Unmarshal(data, &batches); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	created := 0
	for _, batch := range batches {
		for _, payload := range batch.Records {
			if _, err := f.Create(batch.Entity, payload); err != nil {
				log.Printf("WARN: seed %s record skipped: %v", batch.Entity, err)
				continue
			}
			created++
		}
	}
	log.Printf("Seeded %d records", created)
	return nil
}
