// v1
// cmd/telemetry-stream/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nrg-champ/telemetry-stream/internal/app"
	"github.com/nrg-champ/telemetry-stream/internal/config"
	"github.com/nrg-champ/telemetry-stream/internal/logging"
)

func main() {
	os.Exit(run())
}

// run returns the process exit status: 0 after a clean stop, 1 when the
// endpoint is unreachable at startup or the run ends in error.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	lg := logging.New(cfg.LogPath, cfg.LogLevel)
	defer func() { _ = lg.Close() }()
	log := lg.Logger
	log.Info("config loaded", "properties", cfg.PropertiesPath, "endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(), "metrics", cfg.MetricsAddr)

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("init error", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := a.Run(ctx); err != nil {
		return 1
	}
	return 0
}
