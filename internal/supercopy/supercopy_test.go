package supercopy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/log"
	"github.com/dotdot-dev/mediamaster/pkg/types"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.UseExiftool = false
	cfg.UnifiedNaming = false
	cfg.DeviceDBFile = filepath.Join(t.TempDir(), "no-db.json")
	return cfg
}

func writeFileAt(t *testing.T, path, content string, stamp time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if !stamp.IsZero() {
		if err := os.Chtimes(path, stamp, stamp); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRun_CopiesAndVerifies(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	stamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	writeFileAt(t, filepath.Join(source, "photo.jpg"), "jpeg bytes", stamp)

	cfg := newTestConfig(t)
	p := New(cfg, log.Discard())
	defer p.Close()

	var phases []types.ProgressPhase
	stats, err := p.Run(source, target, false, func(phase types.ProgressPhase, msg string, cur, total int) {
		phases = append(phases, phase)
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.OK != 1 || stats.Fail != 0 {
		t.Errorf("unexpected stats: ok=%d fail=%d skip=%d", stats.OK, stats.Fail, stats.Skip)
	}

	dest := filepath.Join(target, "2024-03-01", "图片", "未知设备", "photo.jpg")
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("destination content mismatch: %q", data)
	}
	// The source is copied, never moved.
	if _, err := os.Stat(filepath.Join(source, "photo.jpg")); err != nil {
		t.Errorf("source removed by copy: %v", err)
	}

	seen := map[types.ProgressPhase]bool{}
	for _, ph := range phases {
		seen[ph] = true
	}
	for _, want := range []types.ProgressPhase{
		types.PhaseHashSource, types.PhaseCopy, types.PhaseHashDest, types.PhaseVerifyOK,
	} {
		if !seen[want] {
			t.Errorf("missing progress phase %s", want)
		}
	}
}

func TestRun_VerificationFailureRemovesDestination(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	stamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	writeFileAt(t, filepath.Join(source, "photo.jpg"), "original", stamp)

	cfg := newTestConfig(t)
	p := New(cfg, log.Discard())
	defer p.Close()

	// Corrupt the destination between copy and verification.
	p.afterCopy = func(dest string) {
		os.WriteFile(dest, []byte("corrupted"), 0644)
	}

	var sawVerifyFail bool
	stats, err := p.Run(source, target, false, func(phase types.ProgressPhase, msg string, cur, total int) {
		if phase == types.PhaseVerifyFail {
			sawVerifyFail = true
		}
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Fail != 1 || stats.OK != 0 {
		t.Errorf("unexpected stats: ok=%d fail=%d", stats.OK, stats.Fail)
	}
	if !sawVerifyFail {
		t.Error("expected verify_fail phase")
	}
	if len(stats.Report.MediaFail) != 1 {
		t.Fatalf("expected 1 media failure, got %d", len(stats.Report.MediaFail))
	}

	dest := filepath.Join(target, "2024-03-01", "图片", "未知设备", "photo.jpg")
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("failed copy must not leave a destination file")
	}
}

func TestRun_OverflowSweepPreservesRelativePaths(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	stamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	writeFileAt(t, filepath.Join(source, "photo.jpg"), "media", stamp)
	writeFileAt(t, filepath.Join(source, "docs", "readme.txt"), "text", stamp)
	writeFileAt(t, filepath.Join(source, "session.lock"), "lock", stamp)

	cfg := newTestConfig(t)
	p := New(cfg, log.Discard())
	defer p.Close()

	stats, err := p.Run(source, target, false, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Media plus the overflow file; the leave-in-place lock is excluded.
	if stats.OK != 2 {
		t.Errorf("expected 2 successes, got %d", stats.OK)
	}
	if len(stats.Report.OtherOK) != 1 {
		t.Fatalf("expected 1 overflow copy, got %d", len(stats.Report.OtherOK))
	}

	overflowDest := filepath.Join(target, OverflowFolder, "docs", "readme.txt")
	if _, err := os.Stat(overflowDest); err != nil {
		t.Errorf("overflow file not at relative path: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, OverflowFolder, "session.lock")); !os.IsNotExist(err) {
		t.Error("leave-in-place file must not be swept")
	}
}

func TestRun_NoMediaStillSweepsOverflow(t *testing.T) {
	// A source with no classifiable media still gets its files copied
	// into the overflow folder.
	source := t.TempDir()
	target := t.TempDir()
	stamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	writeFileAt(t, filepath.Join(source, "docs", "readme.txt"), "text", stamp)

	cfg := newTestConfig(t)
	p := New(cfg, log.Discard())
	defer p.Close()

	stats, err := p.Run(source, target, false, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.OK != 1 || len(stats.Report.OtherOK) != 1 {
		t.Errorf("expected 1 overflow copy, got ok=%d other_ok=%d", stats.OK, len(stats.Report.OtherOK))
	}
	if _, err := os.Stat(filepath.Join(target, OverflowFolder, "docs", "readme.txt")); err != nil {
		t.Errorf("overflow file missing: %v", err)
	}
}

func TestRun_RelatedFilesTravelWithPrimary(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	stamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	writeFileAt(t, filepath.Join(source, "clip.mp4"), "video", stamp)
	writeFileAt(t, filepath.Join(source, "clip.srt"), "subs", stamp)

	cfg := newTestConfig(t)
	p := New(cfg, log.Discard())
	defer p.Close()

	stats, err := p.Run(source, target, false, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.OK != 2 {
		t.Errorf("expected primary + related copied, got ok=%d", stats.OK)
	}

	dir := filepath.Join(target, "2024-03-01", "视频", "未知设备")
	if _, err := os.Stat(filepath.Join(dir, "clip.mp4")); err != nil {
		t.Errorf("primary missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "clip.srt")); err != nil {
		t.Errorf("related file missing: %v", err)
	}
	// Related files are verified copies too, so they never appear twice
	// via the overflow sweep.
	if _, err := os.Stat(filepath.Join(target, OverflowFolder, "clip.srt")); !os.IsNotExist(err) {
		t.Error("related file duplicated into overflow")
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	source := t.TempDir()
	target := filepath.Join(t.TempDir(), "out")
	stamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	writeFileAt(t, filepath.Join(source, "photo.jpg"), "media", stamp)
	writeFileAt(t, filepath.Join(source, "readme.txt"), "text", stamp)

	cfg := newTestConfig(t)
	p := New(cfg, log.Discard())
	defer p.Close()

	stats, err := p.Run(source, target, true, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.OK != 2 {
		t.Errorf("dry run should report would-be copies, got ok=%d", stats.OK)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("dry run must not create the target directory")
	}
}

func TestRun_MissingSourceIsError(t *testing.T) {
	cfg := newTestConfig(t)
	p := New(cfg, log.Discard())
	defer p.Close()

	if _, err := p.Run(filepath.Join(t.TempDir(), "nope"), t.TempDir(), false, nil); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := hashFile(path)
	if err != nil {
		t.Fatalf("hashFile failed: %v", err)
	}
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	if _, err := hashFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
