package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chess-vn/courtsync/internal/app/server"
	"github.com/chess-vn/courtsync/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	cfg := server.NewConfig()
	if err := logging.Init(cfg.LogLevel); err != nil {
		logging.Fatal("invalid log level", zap.String("level", cfg.LogLevel), zap.Error(err))
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logging.Fatal("failed to configure server", zap.Error(err))
	}
	if err := srv.Start(ctx); err != nil {
		logging.Fatal("Match server exited: ", zap.Error(err))
	}
	logging.Info("match server stopped")
}
