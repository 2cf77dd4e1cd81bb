package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/riskiq/internal/api"
	"github.com/opensource-finance/riskiq/internal/bus"
	"github.com/opensource-finance/riskiq/internal/cache"
	"github.com/opensource-finance/riskiq/internal/domain"
	"github.com/opensource-finance/riskiq/internal/metrics"
	"github.com/opensource-finance/riskiq/internal/report"
	"github.com/opensource-finance/riskiq/internal/repository"
	"github.com/opensource-finance/riskiq/internal/worker"
)

func (a *app) serveCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the RiskIQ HTTP API together with the async compliance worker and
the report scheduler when they are enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.v)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger := newLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format, a.verbose)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, a.info, logger)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port (overrides server.port)")
	return cmd
}

// serve wires every component from cfg and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *domain.Config, info BuildInfo, logger *slog.Logger) error {
	logger.Info("starting riskiq",
		"version", info.Version,
		"commit", info.Commit,
		"build_date", info.BuildDate,
	)
	logger.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"inference", cfg.Inference.Provider,
		"tracing", cfg.Tracing.Enabled,
	)

	collector := metrics.NewCollector(logger)

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	logger.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	logger.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(ctx, cfg.EventBus, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	logger.Info("event bus initialized", "type", cfg.EventBus.Type)

	svc, err := newServices(ctx, cfg, cacheImpl, logger, collector)
	if err != nil {
		return err
	}
	defer svc.Close()
	logger.Info("rule engines initialized",
		"fraud_rules", svc.fraudRules.RulesCount(),
		"risk_rules", svc.riskRules.RulesCount(),
	)

	jobs := worker.NewJobStore(cacheImpl, 0)

	var (
		asyncWorker *worker.Worker
		jobTenants  []string
	)
	if cfg.Worker.Enabled {
		workerCfg := worker.Config{TenantIDs: cfg.Worker.TenantIDs, WorkerCount: cfg.Worker.Count}
		asyncWorker = worker.NewWorker(busImpl, repo, svc.compliance, jobs, logger)
		if err := asyncWorker.Start(workerCfg); err != nil {
			return fmt.Errorf("failed to start compliance worker: %w", err)
		}
		jobTenants = workerCfg.Tenants()
	}

	generator := report.NewGenerator(repo, cfg.Reports.Institution,
		report.WithBus(busImpl),
		report.WithMetrics(collector),
		report.WithCurrency(cfg.Risk.CurrencySymbol, cfg.Risk.Locale),
		report.WithLogger(logger),
	)

	var scheduler *report.Scheduler
	if cfg.Reports.Schedule != "" {
		scheduler, err = report.NewScheduler(generator, cfg.Reports.Schedule, cfg.Reports.TenantIDs, logger)
		if err != nil {
			return err
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
	}

	srv := api.NewServer(cfg.Server, api.Dependencies{
		Repo:       repo,
		Cache:      cacheImpl,
		Bus:        busImpl,
		Compliance: svc.compliance,
		Fraud:      svc.fraud,
		Risk:       svc.risk,
		FraudRules: svc.fraudRules,
		RiskRules:  svc.riskRules,
		Reports:    generator,
		Submitter:  report.NewSubmitter(repo, nil, logger),
		Jobs:       jobs,
		JobTenants: jobTenants,
		Metrics:    collector,
		Logger:     logger,
		Version:    info.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("riskiq is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case serveErr = <-errCh:
		logger.Error("server failed", "error", serveErr)
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			logger.Error("failed to stop compliance worker", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("riskiq shutdown complete")
	return serveErr
}
