package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"billops/internal/auth"
	"billops/internal/bills"
	"billops/internal/catalog"
	"billops/internal/collector"
	"billops/internal/config"
	"billops/internal/connectors"
	gmailconnector "billops/internal/connectors/gmail"
	imapconnector "billops/internal/connectors/imap"
	"billops/internal/files"
	"billops/internal/log"
	"billops/internal/pipeline"
	"billops/internal/storage"
	"billops/internal/tasks"
	"billops/internal/templates"
)

// app holds the services every subcommand shares.
type app struct {
	cfg       config.Config
	logger    *log.Logger
	db        *storage.DB
	ws        *files.Workspace
	catalog   *catalog.Catalog
	processor *pipeline.ProcessingService
	bills     *bills.Service
	tasks     *tasks.Manager
	runner    *tasks.Runner
}

func newLogger(cfg config.Config) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

func newApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	ws, err := files.New(cfg.DownloadDir, cfg.TempDir, cfg.BillImageDir, cfg.BillPDFDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	src, err := templateSource(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db, ws: ws, catalog: cat}
	a.processor = pipeline.NewProcessingService(db, ws, src, cat, pipeline.Options{
		UploadFreshness:     cfg.UploadFreshness(),
		DefaultLicenseCount: cfg.DefaultLicenseCount,
		Logger:              logger,
	})
	a.bills = bills.NewService(db, ws, cat, logger)
	a.tasks = tasks.NewManager(db)
	a.runner = tasks.NewRunner(a.tasks, db, cat, newCollector(cfg, logger), ws, logger)
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if strings.TrimSpace(cfg.CatalogPath) == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

func templateSource(ctx context.Context, cfg config.Config) (templates.Source, error) {
	if cfg.TemplateSource == "gcs" {
		return templates.NewGCSSource(ctx, cfg.TemplateBucket, cfg.TempDir, templates.GCSOptions(cfg.GCSCredentialsFile)...)
	}
	return templates.LocalSource{Dir: cfg.TemplateDir}, nil
}

func newCollector(cfg config.Config, logger *log.Logger) collector.Collector {
	if cfg.CollectorMode == "dir" {
		return collector.DirCollector{
			Dir:  cfg.DownloadDir,
			Wait: time.Duration(cfg.CollectorWaitSec) * time.Second,
		}
	}
	return collector.NewHTTPCollector(collector.Options{
		DownloadDir: cfg.DownloadDir,
		Timeout:     time.Duration(cfg.CollectorTimeoutMs) * time.Millisecond,
		RateRPS:     cfg.CollectorRateRPS,
		Retries:     cfg.CollectorRetries,
		Logger:      logger,
	})
}

func newAuthorizer(cfg config.Config) (*auth.Authorizer, error) {
	if auth.Mode(cfg.AuthzMode) == auth.ModeDisabled {
		return nil, nil
	}
	return auth.NewAuthorizer(cfg.AuthzModelPath, cfg.AuthzPolicyPath, auth.Mode(cfg.AuthzMode))
}

func makeConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
