// Package cli holds the cobra commands behind the nosht binary.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nosht/nosht/pkg/config"
	"github.com/nosht/nosht/pkg/database"
	"github.com/nosht/nosht/pkg/logger"
	"github.com/nosht/nosht/pkg/telemetry"
)

// ConfigPath is set by the root --config flag
var ConfigPath string

// runtime is what every command needs before it can do work
type runtime struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.PostgresDB
}

// bootstrap loads config, then starts logging, telemetry and the database pool
func bootstrap(ctx context.Context, component string, withTelemetry bool) (*runtime, error) {
	var (
		cfg *config.Config
		err error
	)
	if ConfigPath != "" {
		cfg, err = config.LoadWithPath(ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.ServiceName = cfg.App.Name + "-" + component
	logCfg.Development = cfg.IsDevelopment()
	if cfg.App.Debug {
		logCfg.Level = "debug"
	}
	if err := logger.Init(logCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Get()

	if withTelemetry {
		if _, err := telemetry.Init(ctx, telemetry.FromConfig(cfg.App, cfg.OTel)); err != nil {
			// tracing is optional, the service runs without it
			log.Warn("failed to initialize telemetry", zap.Error(err))
		}
	}

	db, err := database.NewPostgres(ctx, database.FromConfig(cfg.Database))
	if err != nil {
		return nil, err
	}

	log.Info("bootstrapped",
		zap.String("component", component),
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)
	return &runtime{cfg: cfg, log: log, db: db}, nil
}

// close releases what bootstrap opened
func (r *runtime) close(ctx context.Context) {
	r.db.Close()
	if err := telemetry.Shutdown(ctx); err != nil {
		r.log.Warn("telemetry shutdown failed", zap.Error(err))
	}
	_ = r.log.Sync()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
