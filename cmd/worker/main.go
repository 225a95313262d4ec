package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citypark/citypark/internal/app"
	jobmetrics "github.com/citypark/citypark/internal/jobs"
	"github.com/citypark/citypark/internal/parking"
	"github.com/citypark/citypark/internal/platform/db"
	"github.com/citypark/citypark/jobs"
)

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

	money, err := cfg.MoneyFormatter()
	if err != nil {
		logger.Error("money formatter", slog.Any("error", err))
		os.Exit(1)
	}
	metrics := jobmetrics.NewMetrics(nil)

	receiptJob := jobs.NewReceiptJob(money, logger, metrics)
	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskParkingReceipt, Handler: receiptJob.Handle},
	}
	var cron []jobs.CronRegistration

	// The memory store lives inside the API process, so only a shared
	// database can feed occupancy snapshots.
	if cfg.StoreDriver == app.StorePostgres {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()

		snapshotJob := jobs.NewOccupancySnapshotJob(parking.NewRepository(pool), logger, metrics)
		snapshotTask, err := jobs.NewOccupancySnapshotTask()
		if err != nil {
			logger.Error("build snapshot task", slog.Any("error", err))
			os.Exit(1)
		}
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskOccupancySnapshot, Handler: snapshotJob.Handle})
		cron = append(cron, jobs.CronRegistration{Spec: "* * * * *", Task: snapshotTask, Options: []asynq.Option{asynq.MaxRetry(0)}})
	} else {
		logger.Info("occupancy snapshot disabled", slog.String("store", cfg.StoreDriver))
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    handlers,
		Cron:        cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler()}
		go func() {
			logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
