package main

import (
	"context"
	"flag"
	"os"
	"time"

	"gagyebu/internal/cli"
	"gagyebu/internal/log"
	"gagyebu/internal/services"
	"gagyebu/internal/sheets"
	gsheet "gagyebu/internal/sheets/google"
	"gagyebu/internal/sheets/xlsx"
	"gagyebu/internal/worker"
)

func main() {
	backfill := flag.String("backfill", "", "comma separated user:YYYY-MM months to export at startup")
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentWorker)

	periods, err := worker.ParsePeriods(*backfill)
	if err != nil {
		logger.Error("Invalid -backfill value", log.FieldError, err)
		os.Exit(1)
	}

	// The worker reads the months the API wrote, so it needs the shared database.
	if cfg.DataBackend != "sqlite" {
		logger.Error("The worker requires DATA_BACKEND=sqlite", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ctx := context.Background()
	var exporters []sheets.MonthExporter
	if cfg.ExportDir != "" {
		exporters = append(exporters, xlsx.NewExporter(cfg.ExportDir))
		logger.Info("Workbook export enabled", "dir", cfg.ExportDir)
	}
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporters = append(exporters, client)
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}
	if len(exporters) == 0 {
		logger.Error("No exporter configured, set EXPORT_DIR or GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	res := cli.OpenBackend(ctx, cfg, logger)
	if res.Events == nil {
		logger.Error("The worker requires a reachable AMQP broker", "amqp_url_set", cfg.AMQPURL != "")
		_ = res.Cleanup()
		os.Exit(1)
	}

	processor := services.NewExportProcessor(res.Store, services.ExportProcessorConfig{
		FlushInterval: cfg.ExportFlushInterval,
		BatchSize:     cfg.ExportBatchSize,
		MaxRetries:    services.DefaultExportProcessorConfig().MaxRetries,
	}, logger, exporters...)
	w := worker.NewExportWorker(res.Events, processor, logger)

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := w.Backfill(runCtx, periods); err != nil {
		logger.Error("Startup backfill incomplete", log.FieldError, err)
	}

	logger.Info("Starting gagyebu worker", "exporters", len(exporters))
	if err := w.Run(runCtx); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
	}

	if err := res.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", log.FieldError, err)
	}
	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker stopped")
}
