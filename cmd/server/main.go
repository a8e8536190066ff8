// Package main is the entry point for the social.org hosting server.
//
// main stays minimal: read configuration, build the logger, hand both to
// internal/server. Everything else lives in internal packages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/social-host/internal/config"
	"github.com/sakif/social-host/internal/server"
)

func main() {
	// === 1. CONFIGURATION ===
	// Defaults, then CONFIG_FILE (YAML), then environment variables.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// === 2. LOGGING ===
	logger := config.SetupLogger(cfg)
	slog.SetDefault(logger)

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
