package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MrSnakeDoc/storyshelf/internal/app"
	"github.com/MrSnakeDoc/storyshelf/internal/config"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
	"github.com/MrSnakeDoc/storyshelf/internal/version"
)

func main() {
	// A .env next to the binary is optional; real env vars win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️  failed to read .env: %v", err)
	}

	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Println(version.String())
			return
		case "serve":
			serve()
			return
		}
	}

	os.Exit(runCLI(args))
}

// runCLI keeps the client quiet unless debug logging is asked for.
func runCLI(args []string) int {
	cfg := config.Load()
	level := "warn"
	if cfg.LogLevel == "debug" {
		level = cfg.LogLevel
	}
	loggerClient := logger.New(level, cfg.PrettyLog)
	defer func() { _ = loggerClient.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.NewCLI(cfg, loggerClient, os.Stdin, os.Stdout, os.Stderr).Run(ctx, args)
}

func serve() {
	cfg := config.Load()
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer func() { _ = loggerClient.Sync() }()

	a, err := app.New(context.Background(), cfg, loggerClient)
	if err != nil {
		log.Fatalf("❌ storyshelf failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ storyshelf stopped with error: %v", err)
	}
}
