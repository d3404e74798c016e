package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"schoolreport/internal/app"
	"schoolreport/internal/config"
	"schoolreport/internal/logging"
)

func main() {
	cfg := config.Load()
	log, err := logging.New(cfg, "reportctl")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := commandLine{
		gen:    func() generator { return app.NewGenerator(cfg, log, nil) },
		out:    os.Stdout,
		issuer: cfg.JWTIssuer,
		key:    cfg.JWTSigningKey,
		ttl:    cfg.AccessTTL,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		log.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
