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

	"github.com/domus-erp/domus-erp/internal/app"
	"github.com/domus-erp/domus-erp/internal/billing/configver"
	"github.com/domus-erp/domus-erp/internal/billing/ledger"
	"github.com/domus-erp/domus-erp/internal/billing/settlement"
	"github.com/domus-erp/domus-erp/internal/masterdata/meters"
	"github.com/domus-erp/domus-erp/internal/masterdata/services"
	"github.com/domus-erp/domus-erp/internal/masterdata/units"
	"github.com/domus-erp/domus-erp/internal/observability"
	"github.com/domus-erp/domus-erp/internal/platform/cache"
	"github.com/domus-erp/domus-erp/internal/platform/db"
	"github.com/domus-erp/domus-erp/internal/shared"
	"github.com/domus-erp/domus-erp/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	auditLogger := shared.NewAuditLogger(dbpool)
	locker := shared.NewPeriodLocker(redisClient, cfg.RecalcLockTTL)
	metrics := observability.NewMetrics()

	unitsRepo := units.NewRepository(dbpool)
	servicesRepo := services.NewRepository(dbpool)
	metersRepo := meters.NewRepository(dbpool)

	ledgerRepo := ledger.NewRepository(dbpool)
	settlementRepo := settlement.NewRepository(dbpool)

	settlementService := settlement.NewService(settlement.ServiceParams{
		Logger:   logger,
		Repo:     settlementRepo,
		Units:    unitsRepo,
		Services: servicesRepo,
		Meters:   metersRepo,
		Ledger:   ledger.NewService(ledgerRepo, nil),
		Locker:   locker,
		Audit:    auditLogger,
		Metrics:  metrics,
	})
	ledgerService := ledger.NewService(ledgerRepo, settlementService)
	configService := configver.NewService(logger, configver.NewRepository(dbpool), servicesRepo, auditLogger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SettlementHandler: settlement.NewHandler(logger, settlementService),
		LedgerHandler:     ledger.NewHandler(logger, ledgerService),
		ConfigHandler:     configver.NewHandler(logger, configService),
		JobsHandler:       jobs.NewHandler(inspector, jobsClient, logger),
		Metrics:           metrics,
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
