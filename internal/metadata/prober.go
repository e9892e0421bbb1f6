// Package metadata extracts capture time, device identity, resolution and
// frame rate from media files through a layered fallback strategy:
// embedded EXIF tags, the external exiftool binary, the ISO BMFF container
// parser, the device pattern database, and finally the file modification
// time. Probe functions never return errors; absence is the only failure
// signal propagated upward.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/log"
	"github.com/dotdot-dev/mediamaster/pkg/types"
)

// djiDevice is the device label for drone footage. Any filename carrying
// the brand marker, or an .lrf proxy, is attributed without probing.
const djiDevice = "大疆"

var fpsPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*fps?`)
var numericPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

type Prober struct {
	cfg    *config.Config
	logger *log.Logger
	et     *exiftoolClient

	dbOnce sync.Once
	db     *DeviceDB
}

func NewProber(cfg *config.Config, logger *log.Logger) *Prober {
	return &Prober{
		cfg:    cfg,
		logger: logger,
		et:     newExiftoolClient(logger),
	}
}

func (p *Prober) Close() {
	p.et.Close()
}

// deviceDB loads the pattern database on first use.
func (p *Prober) deviceDB() *DeviceDB {
	p.dbOnce.Do(func() {
		db, err := LoadDeviceDB(p.cfg.DeviceDBFile)
		if err != nil {
			p.logger.Warn("加载设备模式库失败 %s: %v", p.cfg.DeviceDBFile, err)
			db = &DeviceDB{}
		}
		p.db = db
	})
	return p.db
}

// Fields exposes the raw exiftool tag map, honoring use_exiftool.
// Returns nil when the tool is disabled, missing or timed out.
func (p *Prober) Fields(path string) map[string]string {
	if !p.cfg.UseExiftool {
		return nil
	}
	return p.et.fields(path)
}

// CaptureTime infers the capture timestamp. Nil means no metadata was
// found and the mtime fallback is disabled.
func (p *Prober) CaptureTime(path string, kind types.MediaKind) *time.Time {
	if kind == types.KindImage {
		if t, ok := exifDateTime(path); ok {
			return &t
		}
		m := p.Fields(path)
		for _, key := range []string{"DateTimeOriginal", "CreateDate"} {
			if t, ok := parseExifDate(m[key]); ok {
				return &t
			}
		}
	} else {
		m := p.Fields(path)
		for _, key := range []string{"CreateDate", "DateTimeOriginal", "MediaCreateDate"} {
			if t, ok := parseExifDate(m[key]); ok {
				return &t
			}
		}
		if isISOBMFF(path) {
			if t, ok := mp4CreationTime(path); ok {
				return &t
			}
		}
	}

	if p.cfg.DateFallback == "mtime" {
		if info, err := os.Stat(path); err == nil {
			t := info.ModTime()
			return &t
		}
	}
	return nil
}

// Device infers the originating device label. Audio always maps to the
// unknown-device sentinel.
func (p *Prober) Device(path string, kind types.MediaKind) string {
	unknown := p.cfg.DeviceUnknownName
	if kind != types.KindImage && kind != types.KindVideo && kind != types.KindPanoramicVideo {
		return unknown
	}

	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.Contains(strings.ToUpper(stem), "DJI") || strings.Contains(stem, djiDevice) {
		return djiDevice
	}
	if kind != types.KindImage && strings.EqualFold(filepath.Ext(path), ".lrf") {
		return djiDevice
	}

	if kind == types.KindImage {
		if dev := exifDevice(path); dev != "" {
			return dev
		}
	}
	if m := p.Fields(path); m != nil {
		dev := strings.TrimSpace(m["Make"] + " " + m["Model"])
		if dev != "" {
			return dev
		}
	}
	if dev := p.deviceDB().Match(path); dev != "" {
		return dev
	}
	return unknown
}

// Resolution reads pixel dimensions, or reports absence.
func (p *Prober) Resolution(path string, kind types.MediaKind) (int, int, bool) {
	if kind == types.KindImage {
		if w, h, ok := exifDimensions(path); ok {
			return w, h, true
		}
	}
	if m := p.Fields(path); m != nil {
		for _, pair := range [][2]string{
			{"ImageWidth", "ImageHeight"},
			{"VideoFrameWidth", "VideoFrameHeight"},
		} {
			w, okW := parsePositiveInt(m[pair[0]])
			h, okH := parsePositiveInt(m[pair[1]])
			if okW && okH {
				return w, h, true
			}
		}
	}
	if (kind == types.KindVideo || kind == types.KindPanoramicVideo) && isISOBMFF(path) {
		if w, h, ok := mp4Dimensions(path); ok {
			return w, h, true
		}
	}
	return 0, 0, false
}

// FrameRate returns a label like "60fps", or "" for non-video files and
// probe misses.
func (p *Prober) FrameRate(path string, kind types.MediaKind) string {
	if kind != types.KindVideo && kind != types.KindPanoramicVideo {
		return ""
	}
	if m := p.Fields(path); m != nil {
		for _, key := range []string{"VideoFrameRate", "FrameRate"} {
			v := strings.ReplaceAll(m[key], ",", ".")
			if v == "" {
				continue
			}
			if numericPattern.MatchString(v) {
				if fps, ok := parseFloat(v); ok {
					return fmt.Sprintf("%dfps", int(fps))
				}
			}
			if match := fpsPattern.FindStringSubmatch(v); match != nil {
				if fps, ok := parseFloat(match[1]); ok {
					return fmt.Sprintf("%dfps", int(fps))
				}
			}
		}
	}
	if isISOBMFF(path) {
		if fps, ok := mp4FrameRate(path); ok {
			return fmt.Sprintf("%dfps", int(fps))
		}
	}
	return ""
}

func parsePositiveInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 0, false
	}
	return n, true
}

func parseFloat(s string) (float64, bool) {
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
