package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"

	"github.com/maple-obs/maple-ingest/cmd/maple-ingest/app"
	"github.com/maple-obs/maple-ingest/pkg/util/log"
)

const appName = "maple-ingest"

// Version is set via build flag -ldflags -X main.Version
var Version = "dev"

func main() {
	printVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		level.Error(logger).Log("msg", "error initialising maple-ingest", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		level.Error(logger).Log("msg", "maple-ingest failed", "err", err)
		os.Exit(1)
	}

	level.Info(logger).Log("msg", "server stopped")
}
