package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/putriazni/umqei/internal/app"
	"github.com/putriazni/umqei/internal/forms"
	"github.com/putriazni/umqei/internal/notify"
	"github.com/putriazni/umqei/internal/observability"
	"github.com/putriazni/umqei/internal/period"
	"github.com/putriazni/umqei/internal/platform/cache"
	"github.com/putriazni/umqei/internal/platform/db"
	"github.com/putriazni/umqei/internal/scheduler"
	"github.com/putriazni/umqei/internal/users"
	"github.com/putriazni/umqei/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	mailQueue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := mailQueue.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	userRepo := users.NewRepository(pool)
	broadcaster := notify.NewBroadcaster(userRepo, mailQueue, logger)

	periodRepo := period.NewRepository(pool)
	periodService := period.NewService(periodRepo, broadcaster, logger)

	formRepo := forms.NewRepository(pool)
	cloner := forms.NewCloner(formRepo, logger, metrics)

	sched := scheduler.New(periodService, cloner, logger, metrics, nil)
	defer sched.Stop()

	// A restart may have crossed a session boundary while the process was
	// down; run the clone gate before arming the timer.
	if err := sched.CheckStartupOngoingSession(ctx); err != nil {
		logger.Error("startup session recovery", slog.Any("error", err))
	}
	if err := sched.Resync(ctx); err != nil {
		logger.Error("initial scheduler resync", slog.Any("error", err))
	}

	periodHandler := period.NewHandler(logger, periodService, sched, redisClient, cfg.CurrentCacheTTL)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		PeriodHandler: periodHandler,
		Pool:          pool,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
