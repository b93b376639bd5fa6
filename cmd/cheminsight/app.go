package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/cheminsight/cheminsight/internal/api"
	"github.com/cheminsight/cheminsight/internal/chart"
	"github.com/cheminsight/cheminsight/internal/config"
	"github.com/cheminsight/cheminsight/internal/dashboard"
	"github.com/cheminsight/cheminsight/internal/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds everything a command needs.
type app struct {
	cfg     *config.ClientConfig
	logger  *zap.Logger
	db      *sql.DB
	exports *storage.ExportLog
	client  *api.Client
	dash    *dashboard.Dashboard
	charts  *chart.Renderer
	sink    *dashboard.FileSink
}

// loadConfig reads the config file. A missing file at the default path
// falls back to defaults plus environment overrides.
func loadConfig(path string, explicit bool) (*config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig(path)
	if err == nil {
		return cfg, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return config.DefaultClientConfigFromEnv()
}

// newLogger writes JSON logs to the configured file so the terminal stays
// free for tables and the TUI.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{cfg.Path}
	zc.ErrorOutputPaths = []string{cfg.Path}
	return zc.Build()
}

// newApp opens the local database and wires the dashboard. outputDir
// overrides report.output_dir when set.
func newApp(cfg *config.ClientConfig, logger *zap.Logger, outputDir string) (*app, error) {
	db, err := storage.Open(cfg.Session.DatabasePath)
	if err != nil {
		return nil, err
	}

	api.InitMetrics()

	if outputDir == "" {
		outputDir = cfg.Report.OutputDir
	}
	store := storage.NewCredentialStore(db, cfg.Session.CredentialKey)
	exports := storage.NewExportLog(db)
	client := api.NewClient(cfg.API, store, logger.Named("api"))
	sink := dashboard.NewFileSink(outputDir, exports, logger.Named("sink"))

	dash := dashboard.New(client, store, sink, logger.Named("dashboard"),
		dashboard.WithLogoutOnUnauthorized(cfg.Session.LogoutOnUnauthorized),
		dashboard.WithTrendWindow(cfg.History.TableLimit),
	)

	charts, err := chart.NewRenderer(cfg.Chart, cfg.History.TableLimit, logger.Named("chart"))
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		exports: exports,
		client:  client,
		dash:    dash,
		charts:  charts,
		sink:    sink,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
}
