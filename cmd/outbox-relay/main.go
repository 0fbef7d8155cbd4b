package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/wildberries-parser/internal/config"
	"github.com/maltedev/wildberries-parser/internal/database"
	"github.com/maltedev/wildberries-parser/pkg/logger"
)

const streamMaxLen = 100000

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logger.NewWithFile(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.Database.PoolConfig())
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}

	relay := database.NewRelay(database.NewOutboxRepository(db), redisClient, log, database.RelayConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		StreamMaxLen: streamMaxLen,
	})

	log.Info("Outbox relay starting", "redis", cfg.Redis.Addr, "interval", cfg.Outbox.PollInterval)
	if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Relay stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("Outbox relay stopped")
}
