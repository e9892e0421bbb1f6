// Package planner turns a classified file into a placement: the
// date/kind/device destination directory and, optionally, a unified
// destination basename encoding device, date, resolution and frame rate.
package planner

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/metadata"
	"github.com/dotdot-dev/mediamaster/pkg/types"
)

// NoDateFolder is the date directory for files whose capture time could
// not be inferred.
const NoDateFolder = "无日期"

var folderBadChars = regexp.MustCompile(`[<>:"/\\|?*]`)
var nameBadChars = regexp.MustCompile(`[<>:"/\\|?*\s]+`)

type Planner struct {
	cfg    *config.Config
	prober *metadata.Prober
}

func New(cfg *config.Config, prober *metadata.Prober) *Planner {
	return &Planner{cfg: cfg, prober: prober}
}

// Describe builds the ephemeral MediaRecord for one classified file.
func (p *Planner) Describe(path string, kind types.MediaKind) types.MediaRecord {
	shootDate := p.prober.CaptureTime(path, kind)
	dateStr := NoDateFolder
	if shootDate != nil {
		dateStr = shootDate.Format(p.cfg.FolderStructure.DateFormat)
	}
	return types.MediaRecord{
		Path:      path,
		Kind:      kind,
		ShootDate: shootDate,
		Device:    p.prober.Device(path, kind),
		DateStr:   dateStr,
	}
}

// TargetDir computes outputRoot/date/kindSubfolder[/device]. The device
// level applies to image and video kinds only, and only when
// device_subfolder is enabled.
func (p *Planner) TargetDir(rec types.MediaRecord, outputRoot string) string {
	fs := p.cfg.FolderStructure

	var sub string
	switch rec.Kind {
	case types.KindImage:
		sub = fs.ImageSubfolder
	case types.KindPanoramicVideo:
		sub = fs.PanoramicSubfolder
	case types.KindVideo:
		sub = fs.VideoSubfolder
	default:
		sub = fs.AudioSubfolder
	}

	dir := filepath.Join(outputRoot, rec.DateStr, sub)
	if fs.DeviceSubfolder && rec.Kind != types.KindAudio {
		dir = filepath.Join(dir, SanitizeFolderName(rec.Device, p.cfg.DeviceUnknownName))
	}
	return dir
}

// UnifiedBasename builds sanitize(device)_sanitize(date)[_WxH][_NNfps],
// capped at 120 characters. Returns "" when unified naming is disabled;
// the caller then keeps original stems.
func (p *Planner) UnifiedBasename(rec types.MediaRecord) string {
	if !p.cfg.UnifiedNaming {
		return ""
	}

	device := nameBadChars.ReplaceAllString(strings.TrimSpace(rec.Device), "_")
	if device == "" {
		device = p.cfg.DeviceUnknownName
	}
	date := nameBadChars.ReplaceAllString(strings.TrimSpace(rec.DateStr), "_")
	if date == "" {
		date = NoDateFolder
	}

	parts := []string{device, date}
	if w, h, ok := p.prober.Resolution(rec.Path, rec.Kind); ok {
		parts = append(parts, fmt.Sprintf("%dx%d", w, h))
	}
	if fps := p.prober.FrameRate(rec.Path, rec.Kind); fps != "" {
		parts = append(parts, nameBadChars.ReplaceAllString(fps, "_"))
	}

	name := strings.Trim(strings.Join(parts, "_"), "_")
	return truncateRunes(name, 120)
}

// SanitizeFolderName replaces characters unfit for directory names,
// truncates to 80 runes and substitutes fallback for empty input.
func SanitizeFolderName(name, fallback string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return fallback
	}
	s = folderBadChars.ReplaceAllString(s, "_")
	return truncateRunes(s, 80)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
