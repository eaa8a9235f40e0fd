package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fincore/internal/amqp"
	"fincore/internal/config"
	"fincore/internal/log"
	"fincore/internal/services"
	"fincore/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting rollup-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.ErrAttr(err))
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			log.ErrAttr(err), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	rollup := services.NewRollupService(repo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Rebuild everything once on startup so a fresh worker starts from a
	// consistent summary table.
	logger.Info("Running initial summary rebuild...")
	if err := rollup.RebuildAll(ctx); err != nil {
		logger.Error("Initial rebuild failed", log.ErrAttr(err))
	} else {
		logger.Info("Initial rebuild complete")
	}

	g, ctx := errgroup.WithContext(ctx)

	// Periodic full rebuild catches up on any hints lost while the
	// broker or worker was down.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.RollupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now := <-ticker.C:
				logger.Info("Running periodic summary rebuild...")
				if err := rollup.RebuildAll(ctx); err != nil {
					logger.Error("Periodic rebuild failed", log.ErrAttr(err))
				} else {
					logger.Info("Periodic rebuild complete",
						"next_check", now.Add(cfg.RollupInterval).Format("15:04:05"))
				}
			}
		}
	})

	// Consume refresh hints from the API so hot periods rebuild promptly.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.ErrAttr(err))
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			return amqpClient.ConsumeRebuildRequests(ctx, func(msg *amqp.RebuildRequest) error {
				_, err := rollup.Rebuild(ctx, msg.Year, msg.Month)
				return err
			})
		})
		logger.Info("Consuming rebuild requests", "queue", cfg.AMQPQueue, "interval", cfg.RollupInterval)
	} else {
		logger.Info("AMQP disabled - rebuilding on interval only", "interval", cfg.RollupInterval)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.ErrAttr(err))
		os.Exit(1)
	}
	logger.Info("Rollup-worker shutdown complete")
}
