package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"git-activity-server/internal/config"
	"git-activity-server/internal/server"
	"git-activity-server/internal/store"
)

func newLogger(ginMode string) *zap.Logger {
	if ginMode == gin.DebugMode {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return logger
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		newLogger("").Fatal("invalid configuration", zap.Error(err))
	}

	logger := newLogger(cfg.GinMode)
	defer func() { _ = logger.Sync() }()

	gin.SetMode(cfg.GinMode)

	st, err := store.Open(cfg, logger)
	if err != nil {
		logger.Fatal("open activity store", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := store.NewSweeper(st, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)

	router := server.NewRouter(server.Deps{Store: st, IngestRateLimit: cfg.IngestRateLimit})

	logger.Info("listening",
		zap.Int("port", cfg.Port),
		zap.String("backend", cfg.StorageBackend))
	if err := server.Run(ctx, cfg, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
