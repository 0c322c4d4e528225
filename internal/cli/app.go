// Package cli implements the fhctl subcommands.
package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	appconfig "freelancehub/internal/config"
	"freelancehub/pkg/config"
	"freelancehub/pkg/db"
	"freelancehub/pkg/logger"
)

var (
	okLabel   = color.New(color.FgGreen).Sprint("OK")
	failLabel = color.New(color.FgRed).Sprint("FAILED")
)

type app struct {
	cfg    *appconfig.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func loadConfig() (*appconfig.Config, error) {
	cfg, err := appconfig.Load(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openApp loads config and connects to Postgres. Callers must call close.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	// CLI 只输出 warn 以上日志，结果由命令自己打印
	logCfg := cfg.Log
	logCfg.Level = "warn"
	log := logger.NewLogger(logCfg)

	pool, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: log, pool: pool}, nil
}

func (a *app) close() {
	a.pool.Close()
	_ = a.logger.Sync()
}
