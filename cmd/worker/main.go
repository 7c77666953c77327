package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/putriazni/umqei/internal/app"
	"github.com/putriazni/umqei/internal/files"
	"github.com/putriazni/umqei/internal/notify"
	"github.com/putriazni/umqei/internal/period"
	"github.com/putriazni/umqei/internal/platform/db"
	"github.com/putriazni/umqei/internal/users"
	"github.com/putriazni/umqei/jobs"
)

// Subdirectories of the scratch root that hold permanent artifacts; the
// nightly sweep never enters them.
var keepDirs = []string{"attachment", "evidence", "result_evidence", "log"}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	mailQueue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := mailQueue.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	userRepo := users.NewRepository(pool)
	broadcaster := notify.NewBroadcaster(userRepo, mailQueue, logger)

	periodRepo := period.NewRepository(pool)
	periodService := period.NewService(periodRepo, nil, logger)

	expiryScanner := notify.NewExpiryNotifier(periodService, broadcaster, logger)
	cleanup := files.NewCleanup(cfg.ScratchDir, keepDirs, logger)

	smtpCfg := jobs.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		From: cfg.SMTPFrom,
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: jobs.NewSendEmailHandler(smtpCfg, logger)},
			{Type: jobs.TaskTypeFileCleanup, Handler: jobs.NewFileCleanupHandler(cleanup)},
			{Type: jobs.TaskTypeExpiryScan, Handler: jobs.NewExpiryScanHandler(expiryScanner)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 0 * * *", Task: jobs.NewFileCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 0 * * *", Task: jobs.NewExpiryScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
