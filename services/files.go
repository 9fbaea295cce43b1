package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gradestats/config"
)

// File names the crawl step writes into the data directory. The populate
// steps read the same files, so a crawl can be replayed offline.
const (
	FileDepartments = "departments.json"
	FileSubjects    = "subjects.json"
	FileGrades      = "grades.json"
)

// SnapshotPath returns the path of a raw snapshot file in the data dir.
func SnapshotPath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.DataDir, name)
}

// loadRows decodes a raw snapshot file into a slice of row objects.
func loadRows[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read snapshot %s: %w", path, err)
	}
	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("could not parse snapshot %s: %w", path, err)
	}
	return rows, nil
}
