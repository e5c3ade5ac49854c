// Command reconcile-index rebuilds every owner's class index from the
// classes table once and exits non-zero if any owner failed.
package main

import (
	"context"
	"os"
	"time"

	"github.com/stemsi/classbook-backend/internal/config"
	"github.com/stemsi/classbook-backend/internal/database"
	"github.com/stemsi/classbook-backend/internal/live"
	"github.com/stemsi/classbook-backend/internal/logger"
	"github.com/stemsi/classbook-backend/internal/repository"
	"github.com/stemsi/classbook-backend/internal/service"
	"github.com/stemsi/classbook-backend/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to PostgreSQL")
		return 1
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to Redis")
		return 1
	}
	defer rdb.Close()

	// Reconcile writes the index directly; the queue and notifier are only
	// touched when a repair has to be deferred or announced.
	classService := service.NewClassService(
		repository.NewClassRepository(pool),
		repository.NewUserRepository(pool),
		worker.NewRedisIndexQueue(rdb),
		live.NewRedisNotifier(rdb, log),
		log,
	)

	start := time.Now()
	changed, err := classService.ReconcileAll(ctx)
	if err != nil {
		log.Error().Err(err).Int("changed", changed).Msg("Reconcile finished with errors")
		return 1
	}
	log.Info().
		Int("changed", changed).
		Dur("took", time.Since(start)).
		Msg("Reconcile finished")
	return 0
}
