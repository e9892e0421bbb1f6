// Package state persists the set of already-routed file paths, making
// repeated scans idempotent. Membership means the file was moved, copied
// or explicitly skipped in a prior run; it does not guarantee the
// destination still matches current configuration.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

type processedDoc struct {
	Paths []string `json:"paths"`
}

// ProcessedSet is owned by at most one pipeline run at a time; there is
// no cross-process locking.
type ProcessedSet struct {
	filePath string
	paths    map[string]bool
}

func New(filePath string) *ProcessedSet {
	return &ProcessedSet{
		filePath: filePath,
		paths:    make(map[string]bool),
	}
}

// Load reads the side file; a missing file yields an empty set.
func Load(filePath string) (*ProcessedSet, error) {
	s := New(filePath)

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	var doc processedDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for _, p := range doc.Paths {
		s.paths[p] = true
	}
	return s, nil
}

func (s *ProcessedSet) IsProcessed(path string) bool {
	return s.paths[canonical(path)]
}

func (s *ProcessedSet) MarkProcessed(path string) {
	s.paths[canonical(path)] = true
}

func (s *ProcessedSet) Len() int {
	return len(s.paths)
}

// Save overwrites the side file with the full set. Not an append log:
// a whole-set snapshot at the end of each run.
func (s *ProcessedSet) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return err
	}

	doc := processedDoc{Paths: make([]string, 0, len(s.paths))}
	for p := range s.paths {
		doc.Paths = append(doc.Paths, p)
	}
	sort.Strings(doc.Paths)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0644)
}

// canonical resolves a path to its absolute form so the same file seen
// through different relative paths maps to one identity.
func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
