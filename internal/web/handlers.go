package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/pipeline"
	"github.com/dotdot-dev/mediamaster/internal/supercopy"
	"github.com/dotdot-dev/mediamaster/pkg/types"
)

type APIErrorResponse struct {
	Message string `json:"message"`
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIErrorResponse{Message: message})
}

func writeValidationError(w http.ResponseWriter, field, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}{field, message})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": s.version})
}

type DirEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}

type BrowseResponse struct {
	Path    string     `json:"path"`
	Entries []DirEntry `json:"entries"`
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		path = homeDir
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeAPIError(w, http.StatusNotFound, err.Error())
			return
		}
		if errors.Is(err, os.ErrPermission) {
			writeAPIError(w, http.StatusForbidden, err.Error())
			return
		}
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var dirEntries []DirEntry
	for _, entry := range entries {
		if entry.Name()[0] == '.' {
			continue
		}
		dirEntries = append(dirEntries, DirEntry{
			Name:  entry.Name(),
			Path:  filepath.Join(path, entry.Name()),
			IsDir: entry.IsDir(),
		})
	}

	writeJSON(w, BrowseResponse{Path: path, Entries: dirEntries})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.cfg)
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	cfg := config.DefaultConfig()
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		var validationErr *config.ValidationError
		if errors.As(err, &validationErr) {
			writeValidationError(w, validationErr.Field, validationErr.Message)
			return
		}
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.cfg = cfg
	path := filepath.Join(config.BaseDir(), "config.yaml")
	if err := cfg.SaveToFile(path); err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// ProgressUpdate is the websocket message schema. Type is one of the
// progress phases, "report", "stats" or "error".
type ProgressUpdate struct {
	Type    string                `json:"type"`
	Message string                `json:"message,omitempty"`
	Current int                   `json:"current,omitempty"`
	Total   int                   `json:"total,omitempty"`
	Report  *types.OrganizeReport `json:"report,omitempty"`
	Stats   *types.CopyStats      `json:"stats,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// runMu serializes pipeline runs: the processed set and destination tree
// tolerate only one writer.
var runMu sync.Mutex

type RunRequest struct {
	Source   string `json:"source"`
	Output   string `json:"output"`
	Target   string `json:"target"`
	DryRun   bool   `json:"dry_run"`
	ScanOnly bool   `json:"scan_only"`
}

func (s *Server) handleOrganize(w http.ResponseWriter, r *http.Request) {
	if !runMu.TryLock() {
		writeAPIError(w, http.StatusConflict, "a run is already in progress")
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		runMu.Unlock()
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Source == "" && s.cfg.SourcePath == "" {
		runMu.Unlock()
		writeValidationError(w, "source", "source path is required")
		return
	}

	writeJSON(w, map[string]string{"status": "started"})

	go func() {
		defer runMu.Unlock()
		defer s.recoverToWS()

		p, err := pipeline.New(s.cfg, s.logger)
		if err != nil {
			s.broadcastProgress(ProgressUpdate{Type: "error", Error: err.Error()})
			return
		}
		defer p.Close()

		report, err := p.Run(req.Source, req.Output, pipeline.Options{
			DryRun:   req.DryRun,
			ScanOnly: req.ScanOnly,
		})
		if err != nil {
			s.broadcastProgress(ProgressUpdate{Type: "error", Error: err.Error()})
			return
		}
		s.broadcastProgress(ProgressUpdate{Type: "report", Report: report})
	}()
}

func (s *Server) handleSuperCopy(w http.ResponseWriter, r *http.Request) {
	if !runMu.TryLock() {
		writeAPIError(w, http.StatusConflict, "a run is already in progress")
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		runMu.Unlock()
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Source == "" {
		req.Source = s.cfg.SuperCopySource
	}
	if req.Target == "" {
		req.Target = s.cfg.SuperCopyTarget
	}
	if req.Source == "" || req.Target == "" {
		runMu.Unlock()
		writeValidationError(w, "target", "source and target paths are required")
		return
	}

	writeJSON(w, map[string]string{"status": "started"})

	go func() {
		defer runMu.Unlock()
		defer s.recoverToWS()

		p := supercopy.New(s.cfg, s.logger)
		defer p.Close()

		stats, err := p.Run(req.Source, req.Target, req.DryRun,
			func(phase types.ProgressPhase, message string, current, total int) {
				s.broadcastProgress(ProgressUpdate{
					Type:    string(phase),
					Message: message,
					Current: current,
					Total:   total,
				})
			})
		if err != nil {
			s.broadcastProgress(ProgressUpdate{Type: "error", Error: err.Error()})
			return
		}
		s.broadcastProgress(ProgressUpdate{Type: "stats", Stats: stats})
	}()
}

func (s *Server) recoverToWS() {
	if r := recover(); r != nil {
		s.broadcastProgress(ProgressUpdate{Type: "error", Error: fmt.Sprintf("internal error: %v", r)})
	}
}

func (s *Server) broadcastProgress(update ProgressUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		return
	}
	s.hub.broadcast <- data
}
