package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/opspulse/opspulse/internal/config"
	"github.com/opspulse/opspulse/internal/dashboard"
	"github.com/opspulse/opspulse/internal/errlog"
	"github.com/opspulse/opspulse/internal/health"
	"github.com/opspulse/opspulse/internal/httpapi"
	apimw "github.com/opspulse/opspulse/internal/httpapi/middleware"
	"github.com/opspulse/opspulse/internal/incident"
	"github.com/opspulse/opspulse/internal/logging"
	"github.com/opspulse/opspulse/internal/metrics"
	"github.com/opspulse/opspulse/internal/notify"
	"github.com/opspulse/opspulse/internal/probe"
	"github.com/opspulse/opspulse/internal/repo"
	"github.com/opspulse/opspulse/internal/repo/memory"
	"github.com/opspulse/opspulse/internal/repo/postgres"
	"github.com/opspulse/opspulse/internal/scheduler"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}

	stores, ok := openStores(ctx, cfg, logger)
	if !ok {
		// keep /healthz up so orchestrators can see the process; every
		// data route answers "server not configured"
		srv := httpapi.NewUnconfigured(logger)
		logger.Warn("api_listen_unconfigured", zap.String("addr", cfg.Addr))
		log.Fatal(http.ListenAndServe(cfg.Addr, srv.Router(keys, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst)))
	}

	targets, err := config.LoadTargets(cfg.TargetsFile)
	if err != nil {
		logger.Warn("targets_load_failed", zap.String("file", cfg.TargetsFile), zap.Error(err))
		targets = nil
	}

	runner := probe.NewRunner(probe.NewHTTPChecker(cfg.ProbeTimeout), cfg.Concurrency)
	recorder := health.NewRecorder(stores.Health, logger)

	var notifier notify.Notifier
	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		notifier = slack
	}

	srv := httpapi.NewServer(
		logger,
		targets,
		runner,
		recorder,
		errlog.New(stores.Errors, logger),
		metrics.New(stores.Metrics, logger),
		incident.NewManager(stores.Incidents, stores.Rules, notifier, logger),
		dashboard.New(stores, logger),
		stores.Uptime,
	)

	sweeper := scheduler.NewSweeper(logger, targets, runner, recorder, stores.Health, stores.Uptime, cfg.CheckInterval)
	go sweeper.Run(ctx)

	logger.Info("api_listen",
		zap.String("addr", cfg.Addr),
		zap.Int("targets", len(targets)),
		zap.Bool("slack", notifier != nil),
	)
	if err := http.ListenAndServe(cfg.Addr, srv.Router(keys, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst)); err != nil {
		log.Fatal(err)
	}
}

// openStores picks the storage backend: "memory" for the in-process
// store (dev), a postgres DSN otherwise. An empty DATABASE_URL means the
// server starts unconfigured.
func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Stores, bool) {
	switch cfg.DatabaseURL {
	case "":
		logger.Warn("database_url_empty")
		return repo.Stores{}, false
	case "memory":
		logger.Info("store_memory")
		return memory.New().Stores(), true
	default:
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("postgres_connect_failed", zap.Error(err))
			return repo.Stores{}, false
		}
		logger.Info("store_postgres")
		return pg.Stores(), true
	}
}
