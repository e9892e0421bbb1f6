package planner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/log"
	"github.com/dotdot-dev/mediamaster/internal/metadata"
	"github.com/dotdot-dev/mediamaster/pkg/types"
)

func newTestPlanner(t *testing.T, mutate func(*config.Config)) *Planner {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.UseExiftool = false
	cfg.DeviceDBFile = filepath.Join(t.TempDir(), "no-db.json")
	if mutate != nil {
		mutate(cfg)
	}
	prober := metadata.NewProber(cfg, log.Discard())
	t.Cleanup(prober.Close)
	return New(cfg, prober)
}

func TestTargetDir_KindAndDeviceLevels(t *testing.T) {
	p := newTestPlanner(t, nil)

	rec := types.MediaRecord{
		Kind:    types.KindImage,
		Device:  "Canon EOS R5",
		DateStr: "2024-03-15",
	}
	got := p.TargetDir(rec, "/out")
	want := filepath.Join("/out", "2024-03-15", "图片", "Canon EOS R5")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	rec.Kind = types.KindPanoramicVideo
	got = p.TargetDir(rec, "/out")
	want = filepath.Join("/out", "2024-03-15", "全景视频", "Canon EOS R5")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestTargetDir_AudioHasNoDeviceLevel(t *testing.T) {
	p := newTestPlanner(t, nil)

	rec := types.MediaRecord{
		Kind:    types.KindAudio,
		Device:  "未知设备",
		DateStr: "2024-03-15",
	}
	got := p.TargetDir(rec, "/out")
	want := filepath.Join("/out", "2024-03-15", "音频")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestTargetDir_DeviceSubfolderDisabled(t *testing.T) {
	p := newTestPlanner(t, func(cfg *config.Config) {
		cfg.FolderStructure.DeviceSubfolder = false
	})

	rec := types.MediaRecord{
		Kind:    types.KindVideo,
		Device:  "GoPro",
		DateStr: "2024-03-15",
	}
	got := p.TargetDir(rec, "/out")
	want := filepath.Join("/out", "2024-03-15", "视频")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestTargetDir_SanitizesDeviceName(t *testing.T) {
	p := newTestPlanner(t, nil)

	rec := types.MediaRecord{
		Kind:    types.KindImage,
		Device:  `Cam<era>:v2?`,
		DateStr: "2024-03-15",
	}
	got := p.TargetDir(rec, "/out")
	if strings.ContainsAny(filepath.Base(got), `<>:"/\|?*`) {
		t.Errorf("device folder not sanitized: %s", got)
	}
}

func TestDescribe_MtimeDate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	stamp := time.Date(2024, 3, 15, 9, 0, 0, 0, time.Local)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	p := newTestPlanner(t, nil)
	rec := p.Describe(path, types.KindVideo)
	if rec.DateStr != "2024-03-15" {
		t.Errorf("expected 2024-03-15, got %s", rec.DateStr)
	}
	if rec.ShootDate == nil {
		t.Error("expected non-nil shoot date")
	}
}

func TestDescribe_NoDateFolder(t *testing.T) {
	p := newTestPlanner(t, func(cfg *config.Config) {
		cfg.DateFallback = "none"
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := p.Describe(path, types.KindVideo)
	if rec.DateStr != NoDateFolder {
		t.Errorf("expected %s, got %s", NoDateFolder, rec.DateStr)
	}
	if rec.ShootDate != nil {
		t.Error("expected nil shoot date")
	}
}

func TestUnifiedBasename(t *testing.T) {
	p := newTestPlanner(t, nil)

	rec := types.MediaRecord{
		Path:    "/nonexistent/clip.mp4",
		Kind:    types.KindVideo,
		Device:  "DJI Mini 4",
		DateStr: "2024-03-15",
	}
	got := p.UnifiedBasename(rec)
	if got != "DJI_Mini_4_2024-03-15" {
		t.Errorf("unexpected unified basename: %s", got)
	}
}

func TestUnifiedBasename_Disabled(t *testing.T) {
	p := newTestPlanner(t, func(cfg *config.Config) {
		cfg.UnifiedNaming = false
	})

	rec := types.MediaRecord{Device: "X", DateStr: "2024-03-15"}
	if got := p.UnifiedBasename(rec); got != "" {
		t.Errorf("expected empty basename when disabled, got %s", got)
	}
}

func TestUnifiedBasename_Truncated(t *testing.T) {
	p := newTestPlanner(t, nil)

	rec := types.MediaRecord{
		Path:    "/nonexistent/clip.mp4",
		Kind:    types.KindVideo,
		Device:  strings.Repeat("很长的设备名", 40),
		DateStr: "2024-03-15",
	}
	got := p.UnifiedBasename(rec)
	if n := len([]rune(got)); n > 120 {
		t.Errorf("basename not truncated: %d runes", n)
	}
}

func TestSanitizeFolderName(t *testing.T) {
	cases := []struct {
		in, fallback, want string
	}{
		{`a<b>c`, "fb", "a_b_c"},
		{"  ", "未知设备", "未知设备"},
		{"normal", "fb", "normal"},
		{`x/y\z`, "fb", "x_y_z"},
	}
	for _, c := range cases {
		if got := SanitizeFolderName(c.in, c.fallback); got != c.want {
			t.Errorf("SanitizeFolderName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
