// Package related locates companion files (thumbnails, sidecar metadata,
// proxies) that must travel with a primary media file.
package related

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LeaveInPlaceFilter excludes files that never move.
type LeaveInPlaceFilter interface {
	ShouldLeaveInPlace(path string) bool
}

type Finder struct {
	enabled bool
	filter  LeaveInPlaceFilter
}

func New(enabled bool, filter LeaveInPlaceFilter) *Finder {
	return &Finder{enabled: enabled, filter: filter}
}

// Related returns siblings of primary within its parent directory (not
// recursive) whose stem equals the primary's stem, or where one stem is
// the other plus an underscore- or space-delimited suffix. Leave-in-place
// files never qualify. Results are sorted for deterministic processing.
func (f *Finder) Related(primary string) []string {
	if !f.enabled {
		return nil
	}

	parent := filepath.Dir(primary)
	primaryBase := filepath.Base(primary)
	stem := strings.TrimSuffix(primaryBase, filepath.Ext(primaryBase))

	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil
	}

	var out []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || entry.Name() == primaryBase {
			continue
		}
		path := filepath.Join(parent, entry.Name())
		if f.filter.ShouldLeaveInPlace(path) {
			continue
		}
		otherStem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if stemsRelated(stem, otherStem) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

func stemsRelated(a, b string) bool {
	if a == b {
		return true
	}
	for _, sep := range []string{"_", " "} {
		if strings.HasPrefix(a, b+sep) || strings.HasPrefix(b, a+sep) {
			return true
		}
	}
	return false
}
