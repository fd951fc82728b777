package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"reelflow/internal/config"
	"reelflow/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "path to reelflow config file")
	socketPath := flag.String("socket", "", "override IPC socket path")
	logLevel := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	flag.Parse()

	// Local .env files supply provider credentials during development.
	_ = godotenv.Load()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *socketPath != "" {
		cfg.Paths.SocketPath = *socketPath
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("reelflowd: %v", err)
	}
}
