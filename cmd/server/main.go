package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-lifecycle/internal/cache"
	"github.com/stemsi/exstem-lifecycle/internal/config"
	"github.com/stemsi/exstem-lifecycle/internal/database"
	"github.com/stemsi/exstem-lifecycle/internal/handler"
	"github.com/stemsi/exstem-lifecycle/internal/logger"
	"github.com/stemsi/exstem-lifecycle/internal/metrics"
	"github.com/stemsi/exstem-lifecycle/internal/repository"
	"github.com/stemsi/exstem-lifecycle/internal/router"
	"github.com/stemsi/exstem-lifecycle/internal/service"
	"github.com/stemsi/exstem-lifecycle/internal/validator"
	"github.com/stemsi/exstem-lifecycle/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem exam lifecycle service")

	// ─── Initialize Validator ──────────────────────────────────────────
	if err := validator.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up validator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Migrate Schema ────────────────────────────────────────────────
	if cfg.AutoMigrate {
		if err := database.MigrateUp(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Str("path", cfg.MigrationsPath).Msg("Migrations applied")
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	clock := clockwork.NewRealClock()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	registrationRepo := repository.NewRegistrationRepository(pool)

	// ─── Initialize Caches ─────────────────────────────────────────────
	questionCache := cache.NewQuestionCache(rdb, questionRepo, cfg.QuestionCacheTTL, log)
	eventBus := cache.NewEventBus(rdb, log)

	// ─── Initialize Services ──────────────────────────────────────────
	finalizer := service.NewSessionFinalizer(sessionRepo, questionCache, eventBus, clock, m, log)
	statusService := service.NewStatusService(examRepo, finalizer, eventBus, clock, m, log)
	scheduler := worker.NewStatusScheduler(statusService, clock, cfg.StatusReconcileInterval, m, log)
	examService := service.NewExamService(examRepo, questionRepo, registrationRepo, statusService, scheduler, clock, log)
	sessionService := service.NewExamSessionService(statusService, sessionRepo, registrationRepo, questionCache, finalizer, clock, m, log)
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry, clock)

	// ─── Rebuild Boundary Timers ──────────────────────────────────────
	// Timers live in memory only; recreate them from the store before
	// accepting traffic so no boundary is missed after a restart.
	if _, err := scheduler.Rebuild(ctx); err != nil {
		log.Error().Err(err).Msg("Timer rebuild failed, relying on reconcile sweep")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	checks := map[string]handler.HealthCheck{
		"postgres": pool.Ping,
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}
	handlers := &router.Handlers{
		StudentPortal: handler.NewStudentPortalHandler(sessionService, examService),
		Exam:          handler.NewExamHandler(examService, sessionService),
		WS:            handler.NewWSHandler(eventBus, examService, log, cfg.AllowedOrigins),
		System:        handler.NewSystemHandler(checks, scheduler, clock, log),
	}
	if m != nil {
		handlers.Metrics = m.Handler()
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workers, workerCtx := errgroup.WithContext(workerCtx)

	var locker worker.SweepLocker
	if cfg.FinalizerLockEnabled {
		locker = cache.NewLocker(rdb)
	}
	finalizerWorker := worker.NewFinalizerWorker(finalizer, locker, clock, cfg.SessionSweepInterval, log)

	workers.Go(func() error {
		scheduler.Start(workerCtx)
		return nil
	})
	workers.Go(func() error {
		finalizerWorker.Start(workerCtx)
		return nil
	})

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg, clock, log)

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

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop timers and the sweep, then wait for in-flight work.
	workerCancel()
	if err := workers.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
