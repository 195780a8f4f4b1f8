package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vshulcz/influxreporter/internal/config"
	"github.com/vshulcz/influxreporter/pkg/util"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	util.PrintBuildInfo(os.Stdout, "reporter", buildVersion, buildDate, buildCommit)

	cfg, err := config.LoadReporterConfig(os.Args[1:], os.Stderr)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("reporter stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
