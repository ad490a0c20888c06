package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"travelx/internal/amqp"
	"travelx/internal/auth"
	"travelx/internal/backend"
	"travelx/internal/cache"
	"travelx/internal/cli"
	"travelx/internal/config"
	"travelx/internal/core"
	apphttp "travelx/internal/http"
	"travelx/internal/log"
	"travelx/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	ctx := context.Background()
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	policy, _ := core.ParseCoercionPolicy(cfg.CoercionPolicy)
	loc := cfg.Location()

	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	dashOpts := []services.DashboardOption{
		services.WithCoercionPolicy(policy),
		services.WithTimezone(loc),
	}
	if cfg.DashboardCacheTTL > 0 {
		summaries := cache.NewLRUCache[core.DashboardSummary](24, cfg.DashboardCacheTTL)
		cacheManager.Register(summaries)
		dashOpts = append(dashOpts, services.WithSummaryCache(summaries))
	}
	cacheManager.StartCleanup(5 * time.Minute)
	dashboard := services.NewDashboardService(be.Store, logger, dashOpts...)

	ledgerOpts := []services.LedgerOption{
		services.WithWriteHook(dashboard.Invalidate),
		services.WithLocation(loc),
	}
	var publisher *amqp.Client
	switch {
	case cfg.AMQPURL == "":
		logger.Info("AMQP disabled - records will not be exported")
	case cfg.DataBackend != "sqlite":
		logger.Warn("AMQP_URL ignored: the sync worker reads records from SQLite", "backend", cfg.DataBackend)
	default:
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Records are still stored; only the export is lost.
			logger.Error("Failed to connect to AMQP, continuing without export", log.FieldError, err)
			publisher = nil
		} else {
			ledgerOpts = append(ledgerOpts, services.WithPublisher(publisher))
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	ledger := services.NewLedgerService(be.Store, logger, ledgerOpts...)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:          ":" + cfg.Port,
		SessionSecret: cfg.SessionSecret,
		SecureCookies: os.Getenv("SECURE_COOKIES") == "true",
		Logger:        logger,
		Ready:         be.Ping,
		Location:      loc,
	}, ledger, dashboard, auth.NewService(be.Store))
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting travelx server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldPolicy, policy.String(),
		"timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
