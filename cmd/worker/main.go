package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"dashboard/internal/backend"
	"dashboard/internal/config"
	"dashboard/internal/logging"
	"dashboard/internal/queue"
	"dashboard/internal/roster"
	"dashboard/internal/session"
	"dashboard/internal/store"
)

// Worker consumes roster import jobs and forwards the files to the backend.
func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.Production())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.ImportMode() != config.ImportRedis {
		log.Fatal("standalone worker needs QUEUE_BACKEND=redis and SESSION_BACKEND=redis",
			zap.String("queue_backend", cfg.QueueBackend),
			zap.String("session_backend", cfg.SessionBackend))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(ctx, roster.Schema); err != nil {
		log.Fatal("db migrate failed", zap.Error(err))
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Warn("redis not reachable yet, worker will keep polling", zap.String("addr", cfg.RedisAddr))
	}

	client := backend.New(cfg.BackendURL, cfg.BackendTimeout, log)
	if err := client.Health(ctx); err != nil {
		log.Warn("backend not available", zap.Error(err))
	}

	sessions := session.NewManager(session.NewRedis(redisClient.Client, ""), cfg.SessionTTL, log)
	worker := roster.NewWorker(
		roster.NewRepository(db.Client),
		queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, log),
		sessions,
		client,
		log,
	)
	if err := worker.Run(ctx); err != nil {
		log.Error("worker failed", zap.Error(err))
	}
}
