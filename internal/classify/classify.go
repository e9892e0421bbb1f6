// Package classify maps files to media kinds from configured extension
// tables and detects panoramic/360 video.
package classify

import (
	"path/filepath"
	"strings"

	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/metadata"
	"github.com/dotdot-dev/mediamaster/pkg/types"
)

// panoramicExtensions always classify as panoramic video regardless of
// filename or metadata.
var panoramicExtensions = map[string]bool{
	".360": true, ".insv": true, ".osv": true,
}

// panoramicMarkers in a video stem reclassify it as panoramic.
var panoramicMarkers = []string{"360", "panoram", "theta", "insta360"}

// builtinVideoExtensions are merged into the configured video set so a
// trimmed-down user config cannot orphan panoramic formats.
var builtinVideoExtensions = []string{
	".mp4", ".mov", ".mkv", ".avi", ".wmv", ".webm", ".m4v", ".3gp",
	".mpg", ".mpeg", ".mts", ".360", ".insv", ".lrf", ".osv",
}

type Classifier struct {
	cfg    *config.Config
	prober *metadata.Prober

	imageExt map[string]bool
	videoExt map[string]bool
	audioExt map[string]bool
	leaveExt map[string]bool
}

func New(cfg *config.Config, prober *metadata.Prober) *Classifier {
	videoExt := config.NormalizeExtensions(cfg.VideoExtensions)
	for _, ext := range builtinVideoExtensions {
		videoExt[ext] = true
	}
	return &Classifier{
		cfg:      cfg,
		prober:   prober,
		imageExt: config.NormalizeExtensions(cfg.ImageExtensions),
		videoExt: videoExt,
		audioExt: config.NormalizeExtensions(cfg.AudioExtensions),
		leaveExt: config.NormalizeExtensions(cfg.LeaveInPlaceExtensions),
	}
}

// Classify returns the media kind of a path, or KindNone for extensions
// outside every configured set.
func (c *Classifier) Classify(path string) types.MediaKind {
	ext := strings.ToLower(filepath.Ext(path))
	if c.imageExt[ext] {
		return types.KindImage
	}
	if c.audioExt[ext] {
		return types.KindAudio
	}
	if !c.videoExt[ext] {
		return types.KindNone
	}
	if c.panoramicByPath(path, ext) {
		return types.KindPanoramicVideo
	}
	if c.cfg.UseExiftool && c.panoramicByMetadata(path) {
		return types.KindPanoramicVideo
	}
	return types.KindVideo
}

// ShouldLeaveInPlace reports files excluded from both relation matching
// and classification: the configured leave-in-place set plus compound
// proxy/edit sidecar extensions.
func (c *Classifier) ShouldLeaveInPlace(path string) bool {
	if c.leaveExt[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	lower := strings.ToLower(filepath.Base(path))
	return strings.HasSuffix(lower, ".fg.op") || strings.HasSuffix(lower, ".fg.ed")
}

func (c *Classifier) panoramicByPath(path, ext string) bool {
	if panoramicExtensions[ext] {
		return true
	}
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, marker := range panoramicMarkers {
		if strings.Contains(stem, marker) {
			return true
		}
	}
	return false
}

func (c *Classifier) panoramicByMetadata(path string) bool {
	m := c.prober.Fields(path)
	if m == nil {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(m["ProjectionType"]), "equirectangular") {
		return true
	}
	if strings.Contains(m["Make"], "360") || strings.Contains(m["Model"], "360") {
		return true
	}
	makeLower := strings.ToLower(m["Make"])
	return strings.Contains(makeLower, "theta") || strings.Contains(makeLower, "insta360")
}
