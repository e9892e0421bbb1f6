package policy

import (
	"path/filepath"
	"sort"
	"strings"
)

// DedupeByStem keeps one primary per (parent directory, stem) group.
// Candidates are ordered by (parent, name) and the first occurrence wins,
// so a video and its same-stem thumbnail form a single unit of work: the
// survivor is the primary and the rest travel as related files.
func DedupeByStem(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Slice(sorted, func(i, j int) bool {
		di, dj := filepath.Dir(sorted[i]), filepath.Dir(sorted[j])
		if di != dj {
			return di < dj
		}
		return filepath.Base(sorted[i]) < filepath.Base(sorted[j])
	})

	type stemKey struct {
		dir  string
		stem string
	}
	seen := make(map[stemKey]bool, len(sorted))
	var primaries []string
	for _, p := range sorted {
		base := filepath.Base(p)
		key := stemKey{
			dir:  filepath.Dir(p),
			stem: strings.TrimSuffix(base, filepath.Ext(base)),
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		primaries = append(primaries, p)
	}
	return primaries
}
