package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/dotdot-dev/mediamaster/internal/config"
	applog "github.com/dotdot-dev/mediamaster/internal/log"
	"github.com/dotdot-dev/mediamaster/internal/web"
)

var (
	version = "dev" // set by ldflags during build
)

func main() {
	addr := flag.String("addr", "localhost:8080", "HTTP server address")
	cfgFile := flag.String("config", "", "config file path (defaults to the user config if present)")
	flag.Parse()

	path := *cfgFile
	if path == "" {
		path = filepath.Join(config.BaseDir(), "config.yaml")
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatal(err)
		}
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := applog.New(cfg.LogFile, cfg.LogJSON, cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Close()

	server := web.NewServer(cfg, logger)
	server.SetVersion(version)

	if err := server.Start(*addr); err != nil {
		log.Fatal(err)
	}
}
