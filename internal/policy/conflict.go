// Package policy holds the per-run dedupe and destination collision rules.
package policy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dotdot-dev/mediamaster/pkg/types"
)

type Resolver struct {
	strategy types.DuplicateStrategy
}

func NewResolver(strategy types.DuplicateStrategy) *Resolver {
	return &Resolver{strategy: strategy}
}

// Resolve returns the final destination for srcPath inside targetDir.
// stem is the destination basename without extension (the original stem
// or a unified basename); the extension always comes from srcPath.
//
// A free candidate is used as-is. A candidate that is the same filesystem
// entity as the source is a no-op and is returned unchanged. Otherwise
// the overwrite strategy returns the occupied path, while both skip and
// rename probe _1.._9998 for the first free name — skip must still land
// the file in the target hierarchy instead of silently dropping it.
func (r *Resolver) Resolve(targetDir, srcPath, stem string) string {
	ext := filepath.Ext(srcPath)
	dest := filepath.Join(targetDir, stem+ext)

	destInfo, err := os.Stat(dest)
	if os.IsNotExist(err) {
		return dest
	}
	if err == nil {
		if srcInfo, serr := os.Stat(srcPath); serr == nil && os.SameFile(srcInfo, destInfo) {
			return dest
		}
	}

	if r.strategy == types.DuplicateOverwrite {
		return dest
	}

	for i := 1; i < 9999; i++ {
		candidate := filepath.Join(targetDir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	return dest
}
