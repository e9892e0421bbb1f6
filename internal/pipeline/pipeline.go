// Package pipeline orchestrates the in-place organize mode: classify,
// date, place and move every media file (with its companions) under the
// output root, tracked by the processed set for idempotent re-runs.
package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dotdot-dev/mediamaster/internal/classify"
	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/log"
	"github.com/dotdot-dev/mediamaster/internal/metadata"
	"github.com/dotdot-dev/mediamaster/internal/planner"
	"github.com/dotdot-dev/mediamaster/internal/policy"
	"github.com/dotdot-dev/mediamaster/internal/related"
	"github.com/dotdot-dev/mediamaster/internal/scanner"
	"github.com/dotdot-dev/mediamaster/internal/state"
	"github.com/dotdot-dev/mediamaster/pkg/types"
)

var dateFolderPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type Pipeline struct {
	cfg        *config.Config
	logger     *log.Logger
	prober     *metadata.Prober
	classifier *classify.Classifier
	scanner    *scanner.Scanner
	planner    *planner.Planner
	resolver   *policy.Resolver
	related    *related.Finder
	state      *state.ProcessedSet
}

// Options control one organize invocation.
type Options struct {
	// DryRun reports would-be actions without touching the filesystem.
	DryRun bool
	// ScanOnly previews placements without moving or recording anything.
	ScanOnly bool
}

func New(cfg *config.Config, logger *log.Logger) (*Pipeline, error) {
	st, err := state.Load(cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load processed set: %w", err)
	}

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
		state:      st,
	}, nil
}

func (p *Pipeline) Close() {
	p.prober.Close()
}

// Run scans source and organizes into output. One file is fully handled
// before the next begins; callers must not run two invocations against
// the same output root or processed-set file concurrently.
func (p *Pipeline) Run(source, output string, opts Options) (*types.OrganizeReport, error) {
	if source == "" {
		source = p.cfg.SourcePath
	}
	if source == "" {
		return nil, fmt.Errorf("source path is required")
	}
	if output == "" {
		output = p.cfg.OutputPath
	}
	if output == "" {
		output = source
	}

	mode := "organize"
	if opts.ScanOnly {
		mode = "scan_only"
	}

	collected, err := p.scanner.Collect(source)
	if err != nil {
		p.logger.Error("源路径不可用", err)
		return nil, err
	}
	primaries := policy.DedupeByStem(collected)
	p.logger.Info("扫描整理: 源目录及子目录共发现 %d 个媒体文件，主文件 %d 个", len(collected), len(primaries))

	report := &types.OrganizeReport{
		Mode:       mode,
		Source:     source,
		Output:     output,
		TotalMedia: len(collected),
		ToProcess:  len(primaries),
	}

	if opts.ScanOnly {
		for _, path := range primaries {
			p.preview(path, output, report)
		}
		return report, nil
	}

	for _, path := range primaries {
		p.processFile(path, output, opts.DryRun, report)
	}

	if err := p.state.Save(); err != nil {
		p.logger.Error("保存已处理记录失败", err)
	}

	if !opts.DryRun && p.cfg.DeleteEmptyFolders {
		if n := removeEmptyDirs(output); n > 0 {
			p.logger.Info("已清理 %d 个空文件夹", n)
		}
	}

	return report, nil
}

// preview resolves placements without any filesystem mutation.
func (p *Pipeline) preview(path, output string, report *types.OrganizeReport) {
	kind := p.classifier.Classify(path)
	if kind == types.KindNone {
		return
	}
	rec := p.planner.Describe(path, kind)
	targetDir := p.planner.TargetDir(rec, output)
	unified := p.planner.UnifiedBasename(rec)

	dest := p.resolver.Resolve(targetDir, path, stemOrUnified(path, unified))
	report.Entries = append(report.Entries, types.ReportEntry{
		Action: types.ActionMove, Source: path, Detail: dest,
	})
	for _, r := range p.related.Related(path) {
		rDest := p.resolver.Resolve(targetDir, r, stemOrUnified(r, unified))
		report.Entries = append(report.Entries, types.ReportEntry{
			Action: types.ActionRelated, Source: r, Detail: rDest,
		})
	}
}

// processFile moves one primary and its related files.
//
// A path already in the processed set is skipped only while it sits under
// output/<date>/<kind>/<device> with a non-unknown device; otherwise it is
// re-run so files once bucketed under the unknown device get a second
// chance after the device database learns their pattern. This heuristic
// can re-trigger work on hand-customized layouts (see DESIGN.md).
func (p *Pipeline) processFile(path, outputRoot string, dryRun bool, report *types.OrganizeReport) {
	unknownDev := planner.SanitizeFolderName(p.cfg.DeviceUnknownName, p.cfg.DeviceUnknownName)

	if p.state.IsProcessed(path) {
		if organizedInPlace(path, outputRoot, unknownDev) {
			p.logger.Info("已整理过(跳过): %s", filepath.Base(path))
			report.Entries = append(report.Entries, types.ReportEntry{
				Action: types.ActionAlreadyProcessed, Source: path, Detail: "此前已整理",
			})
			return
		}
		p.logger.Info("重新归类(曾已记录): %s", filepath.Base(path))
	}

	kind := p.classifier.Classify(path)
	if kind == types.KindNone {
		return
	}

	rec := p.planner.Describe(path, kind)
	targetDir := p.planner.TargetDir(rec, outputRoot)
	unified := p.planner.UnifiedBasename(rec)

	dest := p.resolver.Resolve(targetDir, path, stemOrUnified(path, unified))
	if dest == path {
		// Same filesystem entity: nothing to do.
		report.Entries = append(report.Entries, types.ReportEntry{
			Action: types.ActionSkip, Source: path, Detail: "已存在",
		})
		p.state.MarkProcessed(path)
		return
	}

	relatedFiles := p.related.Related(path)

	if !dryRun && p.cfg.MoveFiles {
		if err := moveFile(path, targetDir, dest); err != nil {
			p.logger.Error(fmt.Sprintf("移动失败 %s", path), err)
			report.Entries = append(report.Entries, types.ReportEntry{
				Action: types.ActionFail, Source: path, Detail: err.Error(),
			})
			return
		}
		p.logger.Info("已移动: %s -> %s", filepath.Base(path), dest)
	} else {
		p.logger.Info("[试运行] 将移动: %s -> %s", filepath.Base(path), dest)
	}
	report.Entries = append(report.Entries, types.ReportEntry{
		Action: types.ActionMove, Source: path, Detail: dest,
	})

	for _, r := range relatedFiles {
		if p.state.IsProcessed(r) {
			continue
		}
		rDest := p.resolver.Resolve(targetDir, r, stemOrUnified(r, unified))
		if !dryRun && p.cfg.MoveFiles {
			if err := moveFile(r, targetDir, rDest); err != nil {
				p.logger.Warn("移动关联失败 %s: %v", filepath.Base(r), err)
				report.Entries = append(report.Entries, types.ReportEntry{
					Action: types.ActionFailRelated, Source: r, Detail: err.Error(),
				})
			} else {
				p.logger.Info("已移动关联: %s -> %s", filepath.Base(r), filepath.Base(rDest))
				report.Entries = append(report.Entries, types.ReportEntry{
					Action: types.ActionRelated, Source: r, Detail: rDest,
				})
			}
		} else {
			report.Entries = append(report.Entries, types.ReportEntry{
				Action: types.ActionRelated, Source: r, Detail: rDest,
			})
		}
		p.state.MarkProcessed(r)
	}

	p.state.MarkProcessed(path)
}

// stemOrUnified picks the destination basename: the shared unified name
// when enabled, else the file's own stem. The extension is always the
// file's own.
func stemOrUnified(path, unified string) string {
	if unified != "" {
		return unified
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// organizedInPlace reports whether path already sits at the expected
// depth-3 date/kind/device location under outputRoot with a known device.
func organizedInPlace(path, outputRoot, unknownDev string) bool {
	rel, err := filepath.Rel(outputRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 4 { // date/kind/device/file
		return false
	}
	if !dateFolderPattern.MatchString(parts[0]) {
		return false
	}
	return parts[2] != unknownDev
}

// moveFile renames src into dest, falling back to copy-and-delete across
// filesystem boundaries.
func moveFile(src, targetDir, dest string) error {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyPreserving(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyPreserving(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return err
	}
	if info, statErr := in.Stat(); statErr == nil {
		os.Chtimes(dest, info.ModTime(), info.ModTime())
	}
	return nil
}

// removeEmptyDirs deletes empty directories under root, deepest first.
// The root itself is kept.
func removeEmptyDirs(root string) int {
	var dirs []string
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

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
