package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"billops/internal/bills"
	"billops/internal/catalog"
	"billops/internal/config"
	"billops/internal/files"
	"billops/internal/listener"
	"billops/internal/log"
	"billops/internal/storage"
)

// bill-listener polls the bill mailbox and records carrier bill amounts.
func main() {
	cfg, err := config.Load()
	must(err)
	must(cfg.Validate())

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentListener,
	})

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ws, err := files.New(cfg.DownloadDir, cfg.TempDir, cfg.BillImageDir, cfg.BillPDFDir)
	must(err)
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		must(err)
	}

	svc := listener.NewService(db, cfg, bills.NewService(db, ws, cat, logger), nil, logger)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
