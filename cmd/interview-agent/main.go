package main

import (
	"context"
	"os"

	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/agent"
	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/config"
	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	defer logging.Shutdown(context.Background())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fail(logging.CategoryApp, "failed to load configuration: %v", err)
		os.Exit(1)
	}
	logging.SetLevel(cfg.LogLevel)

	logging.Info(logging.CategoryApp, "starting interview-agent room=%s", cfg.RoomName)

	// Run the session (blocks until the room disconnects or a signal arrives)
	a := agent.New(cfg)
	if err := a.Run(context.Background()); err != nil {
		logging.Fail(logging.CategoryApp, "session failed: %v", err)
		os.Exit(1)
	}

	logging.Info(logging.CategoryApp, "session shutdown complete")
}
