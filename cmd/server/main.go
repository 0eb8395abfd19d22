// Vaultbreak - competitive safe-cracking game backend
package main

import (
	"context"
	"os"

	"github.com/mbd888/vaultbreak/internal/config"
	"github.com/mbd888/vaultbreak/internal/logging"
	"github.com/mbd888/vaultbreak/internal/server"
	"github.com/mbd888/vaultbreak/internal/traces"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Load configuration first so the log level is honored
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, "text")

	logger.Info("starting vaultbreak",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
		"env", cfg.Env,
	)

	ctx := context.Background()

	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTraces(context.Background()); err != nil {
			logger.Warn("trace shutdown error", "error", err)
		}
	}()

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
