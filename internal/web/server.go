// Package web serves the browser UI: a JSON API over the organize and
// super-copy pipelines plus a websocket feed of run progress.
package web

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/log"
)

type Server struct {
	router  *mux.Router
	hub     *Hub
	logger  *log.Logger
	cfg     *config.Config
	version string
}

func NewServer(cfg *config.Config, logger *log.Logger) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = log.Discard()
	}

	s := &Server{
		router:  mux.NewRouter(),
		hub:     NewHub(),
		logger:  logger,
		cfg:     cfg,
		version: "unknown",
	}

	go s.hub.Run()

	s.setupRoutes()
	return s
}

func (s *Server) SetVersion(v string) {
	s.version = v
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", s.handleVersion).Methods("GET")
	api.HandleFunc("/browse", s.handleBrowse).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleSaveConfig).Methods("POST")
	api.HandleFunc("/organize", s.handleOrganize).Methods("POST")
	api.HandleFunc("/supercopy", s.handleSuperCopy).Methods("POST")
	api.HandleFunc("/ws", s.handleWebSocket)

	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("web/static")))
}

func (s *Server) Start(addr string) error {
	fmt.Printf("点点素材管理 Web UI: http://%s\n", addr)
	return http.ListenAndServe(addr, s.router)
}
