// Package supercopy implements the copy mode: the same classification and
// placement as organize, but copying with a hash-verify-rollback protocol
// and sweeping residual non-media files into an overflow directory.
package supercopy

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dotdot-dev/mediamaster/internal/classify"
	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/log"
	"github.com/dotdot-dev/mediamaster/internal/metadata"
	"github.com/dotdot-dev/mediamaster/internal/planner"
	"github.com/dotdot-dev/mediamaster/internal/policy"
	"github.com/dotdot-dev/mediamaster/internal/related"
	"github.com/dotdot-dev/mediamaster/internal/scanner"
	"github.com/dotdot-dev/mediamaster/pkg/types"
)

// OverflowFolder receives every source file that is not classifiable
// media, preserving its source-relative path.
const OverflowFolder = "其他文件"

type Pipeline struct {
	cfg        *config.Config
	logger     *log.Logger
	prober     *metadata.Prober
	classifier *classify.Classifier
	scanner    *scanner.Scanner
	planner    *planner.Planner
	resolver   *policy.Resolver
	related    *related.Finder

	// afterCopy, when set, runs between the copy and the destination
	// digest. Tests use it to corrupt the destination.
	afterCopy func(dest string)
}

func New(cfg *config.Config, logger *log.Logger) *Pipeline {
	prober := metadata.NewProber(cfg, logger)
	classifier := classify.New(cfg, prober)
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		prober:     prober,
		classifier: classifier,
		scanner:    scanner.New(classifier),
		planner:    planner.New(cfg, prober),
		resolver:   policy.NewResolver(cfg.DuplicateStrategy),
		related:    related.New(cfg.RelatedSameStem, classifier),
	}
}

func (p *Pipeline) Close() {
	p.prober.Close()
}

// Run copies source into target. Per file: digest source, copy preserving
// mtime, digest destination, compare; any mismatch or digest failure
// deletes the destination and records the reason. After media handling,
// the remaining source files are copied verbatim under the overflow
// folder. Failures never abort the run.
func (p *Pipeline) Run(source, target string, dryRun bool, progress types.ProgressFunc) (*types.CopyStats, error) {
	stats := &types.CopyStats{Report: &types.CopyReport{}}
	report := stats.Report

	collected, err := p.scanner.Collect(source)
	if err != nil {
		p.logger.Error("超级拷贝: 源路径不可用", err)
		return nil, err
	}
	if !dryRun {
		if err := os.MkdirAll(target, 0755); err != nil {
			return nil, err
		}
	}

	sourceRoot := scanner.NormalizeSourcePath(source)
	primaries := policy.DedupeByStem(collected)
	p.logger.Info("超级拷贝: 共发现 %d 个媒体文件，待处理 %d 个", len(collected), len(primaries))

	relatedOf := make(map[string][]string, len(primaries))
	totalOps := 0
	for _, path := range primaries {
		relatedOf[path] = p.related.Related(path)
		totalOps += 1 + len(relatedOf[path])
	}

	notify := func(phase types.ProgressPhase, msg string, cur, total int) {
		if progress != nil {
			progress(phase, msg, cur, total)
		}
	}
	notify(types.PhaseProgress, "", 0, maxInt(1, totalOps))

	// handled tracks every media path this run already dealt with, so the
	// overflow sweep cannot re-copy a verified file or smuggle a failed
	// one through unverified.
	handled := make(map[string]bool, totalOps)
	currentOp := 0

	for _, path := range primaries {
		kind := p.classifier.Classify(path)
		if kind == types.KindNone {
			stats.Skip++
			continue
		}

		rec := p.planner.Describe(path, kind)
		targetDir := p.planner.TargetDir(rec, target)
		unified := p.planner.UnifiedBasename(rec)

		dest := p.resolveFor(path, targetDir, unified)
		if dest == path {
			stats.Skip++
			report.MediaSkip = append(report.MediaSkip, types.CopyFailure{Source: path, Reason: "已存在"})
			handled[canonical(path)] = true
			p.logger.Info("超级拷贝 跳过已存在: %s", filepath.Base(path))
			continue
		}

		currentOp++
		err := p.copyVerified(path, dest, dryRun, func(phase types.ProgressPhase, msg string) {
			notify(phase, msg, currentOp, totalOps)
		})
		notify(types.PhaseProgress, "", currentOp, totalOps)
		handled[canonical(path)] = true
		if err != nil {
			stats.Fail++
			report.MediaFail = append(report.MediaFail, types.CopyFailure{Source: path, Reason: err.Error()})
			p.logger.Error(fmt.Sprintf("超级拷贝 失败 %s", filepath.Base(path)), err)
			continue
		}
		stats.OK++
		report.MediaOK = append(report.MediaOK, types.CopyPair{Source: path, Dest: dest})

		for _, r := range relatedOf[path] {
			currentOp++
			rDest := p.resolveFor(r, targetDir, unified)
			err := p.copyVerified(r, rDest, dryRun, func(phase types.ProgressPhase, msg string) {
				notify(phase, msg, currentOp, totalOps)
			})
			notify(types.PhaseProgress, "", currentOp, totalOps)
			handled[canonical(r)] = true
			if err != nil {
				report.MediaFail = append(report.MediaFail, types.CopyFailure{Source: r, Reason: err.Error()})
				p.logger.Warn("超级拷贝 关联文件失败 %s: %v", filepath.Base(r), err)
				continue
			}
			stats.OK++
			report.MediaOK = append(report.MediaOK, types.CopyPair{Source: r, Dest: rDest})
		}
	}

	// Overflow sweep: everything not already handled as media and not
	// left in place goes verbatim (no verification) under the overflow
	// folder.
	type overflowItem struct {
		src  string
		rel  string
		dest string
	}
	var overflow []overflowItem
	for _, f := range scanner.CollectAll(sourceRoot) {
		if handled[canonical(f)] {
			continue
		}
		if p.classifier.ShouldLeaveInPlace(f) {
			continue
		}
		rel, err := filepath.Rel(sourceRoot, f)
		if err != nil {
			continue
		}
		overflow = append(overflow, overflowItem{
			src:  f,
			rel:  rel,
			dest: filepath.Join(target, OverflowFolder, rel),
		})
	}

	totalOps += len(overflow)
	if len(overflow) > 0 {
		notify(types.PhaseProgress, "开始拷贝其他文件…", currentOp, totalOps)
	}

	for _, item := range overflow {
		currentOp++
		notify(types.PhaseProgress, "其他文件: "+item.rel, currentOp, totalOps)
		if dryRun {
			stats.OK++
			report.OtherOK = append(report.OtherOK, item.rel)
			continue
		}
		if err := copyPlain(item.src, item.dest); err != nil {
			report.OtherFail = append(report.OtherFail, types.CopyFailure{Source: item.rel, Reason: err.Error()})
			p.logger.Warn("超级拷贝 其他文件失败 %s: %v", item.rel, err)
			continue
		}
		stats.OK++
		report.OtherOK = append(report.OtherOK, item.rel)
	}

	if !dryRun && p.cfg.DeleteEmptyFolders {
		removeEmptyDirs(target)
	}

	p.logger.Info("超级拷贝完成: 成功=%d 失败=%d 跳过=%d", stats.OK, stats.Fail, stats.Skip)
	return stats, nil
}

func (p *Pipeline) resolveFor(path, targetDir, unified string) string {
	stem := unified
	if stem == "" {
		base := filepath.Base(path)
		stem = base[:len(base)-len(filepath.Ext(base))]
	}
	return p.resolver.Resolve(targetDir, path, stem)
}

// copyVerified runs the hash-copy-hash-compare protocol for one file.
// On any failure the destination is removed so a partially-verified copy
// never survives.
func (p *Pipeline) copyVerified(src, dest string, dryRun bool, cb func(types.ProgressPhase, string)) error {
	base := filepath.Base(src)

	if dryRun {
		p.logger.Info("[超级拷贝 试运行] 将拷贝: %s -> %s", base, dest)
		return nil
	}

	cb(types.PhaseHashSource, "计算源文件哈希: "+base)
	srcHash, err := hashFile(src)
	if err != nil {
		cb(types.PhaseVerifyFail, "失败: 无法计算源文件哈希 - "+base)
		return errors.New("无法计算源文件哈希")
	}

	cb(types.PhaseCopy, "拷贝中: "+base)
	if err := atomicCopy(src, dest); err != nil {
		os.Remove(dest)
		cb(types.PhaseVerifyFail, "失败: 拷贝异常 - "+base)
		return err
	}

	if p.afterCopy != nil {
		p.afterCopy(dest)
	}

	cb(types.PhaseHashDest, "校验目标哈希: "+filepath.Base(dest))
	destHash, err := hashFile(dest)
	if err != nil {
		os.Remove(dest)
		cb(types.PhaseVerifyFail, "失败: 无法计算目标哈希 - "+filepath.Base(dest))
		return errors.New("无法计算目标文件哈希")
	}

	if srcHash != destHash {
		os.Remove(dest)
		cb(types.PhaseVerifyFail, "失败: 哈希不一致 - "+base)
		return fmt.Errorf("哈希校验失败: 源=%s... 目标=%s...", srcHash[:16], destHash[:16])
	}

	p.logger.Info("超级拷贝 已校验: %s -> %s", base, dest)
	cb(types.PhaseVerifyOK, "校验通过: "+base)
	return nil
}

// atomicCopy writes to a .part file, preserves the source modification
// time and renames into place.
func atomicCopy(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(part)
		return err
	}

	if info, statErr := in.Stat(); statErr == nil {
		os.Chtimes(part, info.ModTime(), info.ModTime())
	}
	return os.Rename(part, dest)
}

// copyPlain copies a file without verification, for overflow files.
func copyPlain(src, dest string) error {
	return atomicCopy(src, dest)
}

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

func removeEmptyDirs(root string) int {
	var dirs []string
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	// Deepest paths first so emptied parents are also collected.
	for i, j := 0, len(dirs)-1; i < j; i, j = i+1, j-1 {
		dirs[i], dirs[j] = dirs[j], dirs[i]
	}

	removed := 0
	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err == nil && len(entries) == 0 {
			if os.Remove(d) == nil {
				removed++
			}
		}
	}
	return removed
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
