package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"github.com/rowmark/rowmark/ingester"
	"github.com/rowmark/rowmark/internal/config"
	"github.com/rowmark/rowmark/internal/logging"
)

func main() {
	cfgPath := flag.String("config", "rowmark.json", "path to the JSON configuration file")
	logLevel := flag.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "rowmark",
		Level: hclog.LevelFromString(*logLevel),
	})
	logging.SetLogger(logger)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ingester.New(cfg).Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ingester stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
