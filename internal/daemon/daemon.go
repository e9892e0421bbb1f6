// Package daemon runs the unattended auto-copy loop: it polls the
// configured watch paths for mounted devices and super-copies each new
// mount into the target directory.
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/log"
	"github.com/dotdot-dev/mediamaster/internal/supercopy"
)

type Daemon struct {
	cfg    *config.Config
	logger *log.Logger
}

func New(cfg *config.Config, logger *log.Logger) *Daemon {
	return &Daemon{cfg: cfg, logger: logger}
}

// Run polls until ctx is cancelled. Runs are strictly sequential; the
// loop is the enforcement point for at-most-one pipeline invocation per
// target.
func (d *Daemon) Run(ctx context.Context) error {
	ac := d.cfg.AutoCopy
	if !ac.Enabled {
		d.logger.Info("自动拷贝未启用（auto_copy.enabled = true 后生效）")
		<-ctx.Done()
		return ctx.Err()
	}
	if strings.TrimSpace(ac.TargetPath) == "" {
		return fmt.Errorf("auto_copy.target_path is not configured")
	}
	if err := os.MkdirAll(ac.TargetPath, 0755); err != nil {
		return fmt.Errorf("cannot create target directory %s: %w", ac.TargetPath, err)
	}

	interval := time.Duration(ac.PollIntervalSec) * time.Second
	if interval < 15*time.Second {
		interval = 15 * time.Second
	}

	d.logger.Info("守护进程启动，监控路径: %v，目标: %s，间隔 %s", ac.WatchPaths, ac.TargetPath, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		d.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Daemon) sweep(ctx context.Context) {
	for _, watch := range d.cfg.AutoCopy.WatchPaths {
		for _, mount := range ListMountCandidates(watch) {
			// Best-effort cancellation: do not start the next mount.
			if ctx.Err() != nil {
				return
			}
			d.logger.Info("检测到设备路径: %s，开始超级拷贝…", mount)
			p := supercopy.New(d.cfg, d.logger)
			stats, err := p.Run(mount, d.cfg.AutoCopy.TargetPath, false, nil)
			p.Close()
			if err != nil {
				d.logger.Error(fmt.Sprintf("超级拷贝失败 源=%s", mount), err)
				continue
			}
			d.logger.Info("超级拷贝完成 源=%s 成功=%d 失败=%d 跳过=%d",
				mount, stats.OK, stats.Fail, stats.Skip)
		}
	}
}

// ListMountCandidates returns the first-level non-hidden subdirectories
// of a watch path, treated as possible mount points.
func ListMountCandidates(watchPath string) []string {
	entries, err := os.ReadDir(watchPath)
	if err != nil {
		return nil
	}

	var out []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		out = append(out, filepath.Join(watchPath, entry.Name()))
	}
	sort.Strings(out)
	return out
}
