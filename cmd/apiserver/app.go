package main

import (
	"context"
	"fmt"

	"github.com/Brownbull/gabeda-backend/internal/access"
	"github.com/Brownbull/gabeda-backend/internal/analytics"
	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/apiserver/handler"
	"github.com/Brownbull/gabeda-backend/internal/apiserver/scheduler"
	jsvc "github.com/Brownbull/gabeda-backend/internal/auth/jwt"
	"github.com/Brownbull/gabeda-backend/internal/common/cnst"
	"github.com/Brownbull/gabeda-backend/internal/common/config"
	"github.com/Brownbull/gabeda-backend/internal/ingest"
	"github.com/Brownbull/gabeda-backend/internal/ledger"
	"github.com/Brownbull/gabeda-backend/internal/publisher"
	"github.com/Brownbull/gabeda-backend/internal/report"
	"github.com/Brownbull/gabeda-backend/internal/storage"
	"github.com/Brownbull/gabeda-backend/pkg/logger"
	"github.com/Brownbull/gabeda-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// app wires every component of the api server
type app struct {
	cfg          *config.APIServerConfig
	logger       *zap.Logger
	db           database.Database
	metrics      *metrics.Metrics
	orchestrator *ingest.Orchestrator
	runner       *scheduler.Runner
	watchdog     *scheduler.Watchdog
	handler      *handler.Handler
	jwt          *jsvc.Service
}

func initLogger(cfg *config.APIServerConfig) *zap.Logger {
	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		lg, _ = zap.NewProduction()
		lg.Warn("falling back to default logger", zap.Error(err))
	}
	return lg
}

func initDatabase(lg *zap.Logger, cfg *config.DatabaseConfig) (database.Database, error) {
	db, err := database.NewDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize %s database: %w", cfg.Type, err)
	}
	lg.Info("database ready", zap.String("type", cfg.Type))
	return db, nil
}

func initQueue(ctx context.Context, cfg *config.APIServerConfig) (scheduler.Queue, error) {
	switch cnst.RunnerType(cfg.Pipeline.Runner) {
	case cnst.RunnerInline:
		return nil, nil
	case cnst.RunnerRedis:
		return scheduler.NewRedisQueue(ctx, cfg.Redis, cfg.Pipeline.QueueKey)
	default:
		return scheduler.NewMemoryQueue(cfg.Pipeline.QueueSize), nil
	}
}

// newApp builds the component graph. The caller owns close.
func newApp(ctx context.Context, cfg *config.APIServerConfig, lg *zap.Logger) (*app, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	db, err := initDatabase(lg, &cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: lg, db: db}

	if err := database.InitDefaultTenant(ctx, db, cfg.SuperAdmin.Username); err != nil {
		a.close()
		return nil, fmt.Errorf("seed default tenant: %w", err)
	}

	files, err := storage.New(ctx, lg, &cfg.Storage)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	visibility, err := publisher.NewVisibility(cfg.Analytics.Visibility)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(cfg.Metrics)
	}

	lw := ledger.NewWriter(db, cfg.Pipeline.ChunkSize, lg)
	pub := publisher.New(db, visibility, lg)
	a.orchestrator = ingest.NewOrchestrator(ingest.Deps{
		DB:        db,
		Files:     files,
		Ledger:    lw,
		Engine:    analytics.NewEngine(analytics.NewProvider(cfg.Analytics, lg), lg),
		Publisher: pub,
		Metrics:   a.metrics,
		Logger:    lg,
	}, cfg.Pipeline)

	queue, err := initQueue(ctx, cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("initialize queue: %w", err)
	}
	a.runner = scheduler.NewRunner(queue, a.orchestrator, cfg.Pipeline.Workers, lg)
	a.watchdog = scheduler.NewWatchdog(db, lw, a.metrics, cfg.Pipeline.WatchdogInterval, cfg.Pipeline.StaleAfter, lg).
		WithRequeue(a.runner)

	a.jwt, err = jsvc.NewService(jsvc.Config{SecretKey: cfg.JWT.SecretKey, Duration: cfg.JWT.Duration, Issuer: cfg.Tracing.ServiceName})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("initialize jwt: %w", err)
	}

	gate := access.NewGate(access.NewDBMemberships(db), lg)
	a.handler = handler.New(handler.Deps{
		DB:            db,
		Orchestrator:  a.orchestrator,
		Runner:        a.runner,
		Reports:       report.NewService(db, gate, visibility),
		Gate:          gate,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		Logger:        lg,
	})
	return a, nil
}

func (a *app) initRouter() *gin.Engine {
	opts := handler.RouterOptions{
		Metrics:     a.metrics,
		MetricsPath: a.cfg.Metrics.Path,
		JWT:         a.jwt,
	}
	if a.cfg.Tracing.Enabled {
		opts.ServiceName = a.cfg.Tracing.ServiceName
	}
	return handler.NewRouter(a.handler, opts)
}

func (a *app) close() {
	if a.runner != nil {
		if err := a.runner.Stop(); err != nil {
			a.logger.Warn("failed to stop runner", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
}
