package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/domus-erp/domus-erp/internal/app"
	"github.com/domus-erp/domus-erp/internal/billing/ledger"
	"github.com/domus-erp/domus-erp/internal/billing/settlement"
	jobmetrics "github.com/domus-erp/domus-erp/internal/jobs"
	"github.com/domus-erp/domus-erp/internal/masterdata/buildings"
	"github.com/domus-erp/domus-erp/internal/masterdata/meters"
	"github.com/domus-erp/domus-erp/internal/masterdata/services"
	"github.com/domus-erp/domus-erp/internal/masterdata/units"
	"github.com/domus-erp/domus-erp/internal/platform/cache"
	"github.com/domus-erp/domus-erp/internal/platform/db"
	"github.com/domus-erp/domus-erp/internal/shared"
	"github.com/domus-erp/domus-erp/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
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

	metrics := jobmetrics.NewMetrics(nil)

	ledgerRepo := ledger.NewRepository(pool)
	settlementService := settlement.NewService(settlement.ServiceParams{
		Logger:   logger,
		Repo:     settlement.NewRepository(pool),
		Units:    units.NewRepository(pool),
		Services: services.NewRepository(pool),
		Meters:   meters.NewRepository(pool),
		Ledger:   ledger.NewService(ledgerRepo, nil),
		Locker:   shared.NewPeriodLocker(redisClient, cfg.RecalcLockTTL),
		Audit:    shared.NewAuditLogger(pool),
	})

	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	recalcJob := jobs.NewRecalculateJob(settlementService, logger, metrics)
	bulkJob := jobs.NewBulkRecalculateJob(buildings.NewRepository(pool), client, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBillingRecalculate, Handler: recalcJob.Handle},
			{Type: jobs.TaskBillingRecalculateAll, Handler: bulkJob.Handle},
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
