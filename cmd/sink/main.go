package main

import (
	"context"
	"log"
	"net"
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
	util.PrintBuildInfo(os.Stdout, "sink", buildVersion, buildDate, buildCommit)

	cfg, err := config.LoadSinkConfig(os.Args[1:], os.Stderr)
	if err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		logger.Fatal("listen failed", zap.String("addr", cfg.Address), zap.Error(err))
	}
	if err := run(ctx, cfg, ln, logger); err != nil {
		logger.Fatal("sink stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
