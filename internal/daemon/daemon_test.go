package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/log"
)

func TestListMountCandidates(t *testing.T) {
	watch := t.TempDir()
	for _, name := range []string{"sdcard", "usb1", ".hidden"} {
		if err := os.Mkdir(filepath.Join(watch, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(watch, "notadir.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got := ListMountCandidates(watch)
	want := []string{
		filepath.Join(watch, "sdcard"),
		filepath.Join(watch, "usb1"),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestListMountCandidates_MissingWatchPath(t *testing.T) {
	if got := ListMountCandidates(filepath.Join(t.TempDir(), "nope")); got != nil {
		t.Errorf("expected nil for missing watch path, got %v", got)
	}
}

func TestRun_DisabledWaitsForCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AutoCopy.Enabled = false

	d := New(cfg, log.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_RequiresTargetPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AutoCopy.Enabled = true
	cfg.AutoCopy.TargetPath = ""

	d := New(cfg, log.Discard())
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected error without target path")
	}
}

func TestRun_CopiesMountedDevice(t *testing.T) {
	watch := t.TempDir()
	mount := filepath.Join(watch, "sdcard")
	stamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	if err := os.MkdirAll(mount, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mount, "photo.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(filepath.Join(mount, "photo.jpg"), stamp, stamp); err != nil {
		t.Fatal(err)
	}

	target := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.UseExiftool = false
	cfg.UnifiedNaming = false
	cfg.DeviceDBFile = filepath.Join(t.TempDir(), "no-db.json")
	cfg.AutoCopy.Enabled = true
	cfg.AutoCopy.WatchPaths = []string{watch}
	cfg.AutoCopy.TargetPath = target
	cfg.AutoCopy.PollIntervalSec = 3600

	d := New(cfg, log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	dest := filepath.Join(target, "2024-03-01", "图片", "未知设备", "photo.jpg")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(dest); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("first sweep did not copy the mount: %v", err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
