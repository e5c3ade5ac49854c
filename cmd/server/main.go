package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/config"
	"github.com/stemsi/classbook-backend/internal/database"
	"github.com/stemsi/classbook-backend/internal/handler"
	"github.com/stemsi/classbook-backend/internal/live"
	"github.com/stemsi/classbook-backend/internal/logger"
	"github.com/stemsi/classbook-backend/internal/metrics"
	"github.com/stemsi/classbook-backend/internal/repository"
	"github.com/stemsi/classbook-backend/internal/repository/memory"
	"github.com/stemsi/classbook-backend/internal/router"
	"github.com/stemsi/classbook-backend/internal/service"
	"github.com/stemsi/classbook-backend/internal/validator"
	"github.com/stemsi/classbook-backend/internal/worker"
)

// localQueueSize bounds pending owner-index tasks when running without Redis.
const localQueueSize = 1024

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Str("timezone", cfg.Timezone).
		Msg("Starting Classbook Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	cal, err := calendar.Load(cfg.Timezone, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid TIMEZONE")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	checks := map[string]handler.Pinger{}

	// ─── Storage Backend ───────────────────────────────────────────────
	// postgres: pgx repositories, Redis pub/sub and a Redis-backed queue.
	// memory: everything in-process, for local development and demos.
	var (
		classStore      service.ClassStore
		userStore       service.UserStore
		completionStore service.CompletionStore
		feeStore        service.FeeStore
		notifier        live.Notifier
		queue           service.IndexQueue
		localQueue      *worker.LocalIndexQueue
		rdb             *redis.Client
	)

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		db := memory.NewDB()
		classStore = memory.NewClassRepository(db)
		userStore = memory.NewUserRepository(db)
		completionStore = memory.NewCompletionRepository(db)
		feeStore = memory.NewFeeRepository(db)
		notifier = live.NewLocalNotifier()
		localQueue = worker.NewLocalIndexQueue(localQueueSize, m, log)
		queue = localQueue
		log.Warn().Msg("Using in-memory store; data is lost on restart")

	case config.StoreDriverPostgres:
		// ─── Connect to PostgreSQL ─────────────────────────────────────
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		// ─── Connect to Redis ──────────────────────────────────────────
		rdb, err = database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		classStore = repository.NewClassRepository(pool)
		userStore = repository.NewUserRepository(pool)
		completionStore = repository.NewCompletionRepository(pool)
		feeStore = repository.NewFeeRepository(pool)
		notifier = live.NewRedisNotifier(rdb, log)
		queue = worker.NewRedisIndexQueue(rdb)

		checks["postgres"] = pool
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})

	default:
		log.Fatal().Str("store", cfg.StoreDriver).Msg("Unknown STORE_DRIVER")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	userService := service.NewUserService(userStore)
	classService := service.NewClassService(classStore, userStore, queue, notifier, log)
	completionService := service.NewCompletionService(completionStore, classService, cal, notifier, m, log)
	feeService := service.NewFeeService(feeStore, classService, cal, notifier, m, log)
	statsService := service.NewStatsService(completionStore, classService, completionService, cal, notifier, cfg.AgendaDays, cfg.SeriesMonths)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Me:         handler.NewMeHandler(userService, log),
		Class:      handler.NewClassHandler(classService, log),
		Agenda:     handler.NewAgendaHandler(statsService, completionService, log),
		Completion: handler.NewCompletionHandler(completionService, statsService, cal, log),
		Fee:        handler.NewFeeHandler(feeService, classService, m, log),
		Dashboard:  handler.NewDashboardHandler(statsService, m, log),
		WS:         handler.NewWSHandler(completionService, cal, m, log, cfg.AllowedOrigins),
		Health:     handler.NewHealthHandler(checks),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	if localQueue != nil {
		localQueue.SetApplier(classService)
		workers.Add(1)
		go func() {
			defer workers.Done()
			localQueue.Start(workerCtx)
		}()
	}
	if rdb != nil {
		indexWorker := worker.NewIndexWorker(rdb, classService, m, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			indexWorker.Start(workerCtx)
		}()
	}

	reconciler, err := worker.NewIndexReconciler(cfg.ReconcileCron, cal.Location(), classService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid RECONCILE_CRON")
	}
	reconciler.Start()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, m)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout). Open SSE and
	// WebSocket streams hold the server until the timeout expires.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	cancel()

	// 2. Stop the cron schedule, then background workers, and wait for
	// queues to drain.
	reconciler.Stop()
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
