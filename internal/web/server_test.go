package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/log"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("CONFIG_DIR", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.UseExiftool = false
	cfg.UnifiedNaming = false
	cfg.StateFile = filepath.Join(t.TempDir(), "processed.json")
	cfg.DeviceDBFile = filepath.Join(t.TempDir(), "no-db.json")
	return NewServer(cfg, log.Discard())
}

func TestHandleVersion(t *testing.T) {
	s := newTestServer(t)
	s.SetVersion("1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["version"] != "1.2.3" {
		t.Errorf("expected 1.2.3, got %s", body["version"])
	}
}

func TestHandleBrowse(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "file.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/browse?path="+dir, nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body BrowseResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Entries) != 2 {
		t.Errorf("expected 2 visible entries, got %d", len(body.Entries))
	}
	for _, e := range body.Entries {
		if strings.HasPrefix(e.Name, ".") {
			t.Errorf("hidden entry leaked: %s", e.Name)
		}
	}
}

func TestHandleBrowse_MissingPath(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/browse?path="+filepath.Join(t.TempDir(), "nope"), nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestHandleGetConfig(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var cfg config.Config
	if err := json.NewDecoder(rr.Body).Decode(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.DeviceUnknownName != "未知设备" {
		t.Errorf("unexpected config payload: %s", cfg.DeviceUnknownName)
	}
}

func TestHandleSaveConfig_BadJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader("{nope"))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestHandleSaveConfig_ValidationError(t *testing.T) {
	s := newTestServer(t)
	payload := `{"duplicate_strategy": "explode"}`
	req := httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body struct {
		Field string `json:"field"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Field != "duplicate_strategy" {
		t.Errorf("expected duplicate_strategy field error, got %s", body.Field)
	}
}

func TestHandleSaveConfig_PersistsDocument(t *testing.T) {
	cfgDir := t.TempDir()
	t.Setenv("CONFIG_DIR", cfgDir)

	s := NewServer(config.DefaultConfig(), log.Discard())

	body, err := json.Marshal(config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if _, err := os.Stat(filepath.Join(cfgDir, "config.yaml")); err != nil {
		t.Errorf("config document not written: %v", err)
	}
}

func TestHandleOrganize_MissingSource(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/organize", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestHandleOrganize_RejectsConcurrentRuns(t *testing.T) {
	s := newTestServer(t)

	if !runMu.TryLock() {
		t.Fatal("run mutex unexpectedly held")
	}
	defer runMu.Unlock()

	req := httptest.NewRequest(http.MethodPost, "/api/organize", strings.NewReader(`{"source":"/tmp"}`))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected 409 while a run is active, got %d", rr.Code)
	}
}

func TestHandleSuperCopy_MissingPaths(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/supercopy", strings.NewReader(`{"source":"/tmp"}`))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without target, got %d", rr.Code)
	}
}

func TestServerStart_ReturnsErrorOnInvalidAddress(t *testing.T) {
	s := newTestServer(t)
	if err := s.Start("://bad-address"); err == nil {
		t.Fatal("expected listen error for invalid address")
	}
}
