// Package scanner walks a source tree and yields classifiable media
// candidates. Traversal is separated from classification: the walk only
// consults the filter passed in, so either side can be tested alone.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotdot-dev/mediamaster/pkg/types"
)

// FileFilter decides which files are media candidates.
type FileFilter interface {
	Classify(path string) types.MediaKind
	ShouldLeaveInPlace(path string) bool
}

type Scanner struct {
	filter FileFilter
}

func New(filter FileFilter) *Scanner {
	return &Scanner{filter: filter}
}

// Collect recursively gathers media files under root, skipping
// leave-in-place files and anything classified as KindNone. Symlinks are
// not followed. A missing or non-directory root is a run-level error.
func (s *Scanner) Collect(root string) ([]string, error) {
	root = NormalizeSourcePath(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source path unreadable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s", root)
	}

	var collected []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if s.filter.ShouldLeaveInPlace(path) {
			return nil
		}
		if s.filter.Classify(path) == types.KindNone {
			return nil
		}
		collected = append(collected, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collected, nil
}

// CollectAll gathers every regular file under root without filtering,
// used by the super-copy overflow sweep.
func CollectAll(root string) []string {
	var all []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Type().IsRegular() {
			all = append(all, path)
		}
		return nil
	})
	return all
}

// NormalizeSourcePath trims trailing separators and cleans the path so a
// drive root or a path with a stray slash scans consistently.
func NormalizeSourcePath(path string) string {
	s := strings.TrimSpace(path)
	if s == "" {
		return s
	}
	cleaned := filepath.Clean(s)
	return cleaned
}
