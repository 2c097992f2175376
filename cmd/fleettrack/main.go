package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/crack2116/fleettrack/internal/config"
)

var (
	gitRevision = "unknown"
	gitBranch   = "unknown"
)

func main() {
	fmt.Printf("fleettrack version %s:%s\n", gitBranch, gitRevision)

	conf := flag.String("config", "fleettrack.yml", "name of config file")
	debug := flag.Bool("debug", false, "debug")
	flag.Parse()

	cfg := config.NewAppConfig()
	cfg.Load(*conf)
	cfg.LoadEnv("FLEETTRACK_")

	level := cfg.LogLevel()
	if *debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := cfg.Validate(); err != nil {
		slog.Error("bad config", slog.Any("error", err))
		os.Exit(1)
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("can't create app", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		slog.Error("exit", slog.Any("error", err))
		os.Exit(1)
	}
}
