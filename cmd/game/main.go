package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tatianab/seven-sects/internal/app"
	"github.com/tatianab/seven-sects/internal/command"
	"github.com/tatianab/seven-sects/internal/config"
	"github.com/tatianab/seven-sects/internal/tui"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs always go to a file.
	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "sects.log"
	}
	logger, err := config.NewLogger(cfg.LogLevel, logFile)
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		fmt.Printf("Error starting game: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	exec := command.NewExecutor(a.Engine, a.Slots, logger, a.Seed)
	if err := tui.Run(a.Engine, exec); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
