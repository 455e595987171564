// Package main runs the background worker standalone (activity feed consumer
// and quiz-progress reaper) for deployments that split it from the API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pulse-engage/backend/config"
	"github.com/pulse-engage/backend/internal/activity"
	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/internal/realtime"
	"github.com/pulse-engage/backend/internal/worker"
	"github.com/pulse-engage/backend/pkg/database"
	"github.com/pulse-engage/backend/pkg/queue"
	"github.com/pulse-engage/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	store := kvstore.NewPostgres(pool, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Change events still reach API instances through Redis pub/sub even
	// though this process holds no WebSocket clients of its own.
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	activityRepo := activity.NewRepository(store)
	processor := worker.NewActivityProcessor(activityRepo, jobQueue, hub, logger)
	reaper := worker.NewProgressReaper(store,
		time.Duration(cfg.Engagement.ProgressTTLHours)*time.Hour,
		time.Duration(cfg.Engagement.ReapIntervalMinutes)*time.Minute,
		logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	go reaper.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
