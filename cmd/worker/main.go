// Package main runs the invitation delivery worker on its own, without the HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/convites-app/backend/config"
	"github.com/convites-app/backend/internal/convites"
	"github.com/convites-app/backend/internal/events"
	"github.com/convites-app/backend/internal/realtime"
	"github.com/convites-app/backend/internal/worker"
	"github.com/convites-app/backend/pkg/database"
	"github.com/convites-app/backend/pkg/queue"
	"github.com/convites-app/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Dashboards are served by the API instances; updates reach them over Redis.
	notifier := realtime.NewRedisPubSub(rdb.Client, logger)
	processor := worker.NewInviteProcessor(
		convites.NewRepository(pool),
		events.NewRepository(pool),
		worker.NewLogSender(cfg.Invite.SenderName, logger),
		notifier,
		queue.NewQueue(rdb.Client, logger),
		cfg.Invite.PublicBaseURL,
		logger,
	)

	workerCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("worker started", zap.Int("concurrency", cfg.Worker.Concurrency))
	processor.Run(workerCtx, cfg.Worker.Concurrency)
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
