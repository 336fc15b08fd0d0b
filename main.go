package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	_ "github.com/reconlab/recon-engine/pkg/adapters/reader/csvfile"
	_ "github.com/reconlab/recon-engine/pkg/adapters/reader/inline"
	_ "github.com/reconlab/recon-engine/pkg/adapters/reader/objectstore"
	_ "github.com/reconlab/recon-engine/pkg/adapters/reader/parquetfile"
	_ "github.com/reconlab/recon-engine/pkg/adapters/reader/postgres"
	_ "github.com/reconlab/recon-engine/pkg/adapters/reader/sqlserver"
	_ "github.com/reconlab/recon-engine/pkg/adapters/reader/zipfile"
	"github.com/reconlab/recon-engine/pkg/config"
	"github.com/reconlab/recon-engine/pkg/export"
	"github.com/reconlab/recon-engine/pkg/handlers"
	"github.com/reconlab/recon-engine/pkg/logging"
	"github.com/reconlab/recon-engine/pkg/middleware"
	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/services"
	"github.com/reconlab/recon-engine/pkg/typemap"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	registry := typemap.DefaultRegistry()
	factory := reader.NewFactory(reader.LimitsFromConfig(cfg.Readers))
	matcher := services.NewColumnMatcher(logger)
	validator := services.NewMappingValidator(registry, logger)
	runService := services.NewRunService(
		factory,
		matcher,
		validator,
		services.NewComparisonEngine(registry, logger),
		services.NewProfileService(registry, logger),
		export.NewExporter(cfg.Export.Dir, logger),
		cfg.Runs,
		logger,
	)

	// One-shot mode: execute the given run definition and exit instead of
	// serving the API.
	if cfg.RunFile != "" {
		code := runOnce(cfg.RunFile, runService, logger)
		runService.Shutdown()
		_ = logger.Sync()
		os.Exit(code)
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewReadersHandler(factory, logger).RegisterRoutes(mux)
	handlers.NewMappingHandler(matcher, validator, logger).RegisterRoutes(mux)
	handlers.NewRunsHandler(runService, logger).RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting recon-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env))
	if err := http.ListenAndServe(addr, middleware.RequestLogger(logger)(mux)); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// runOnce executes a single run definition from a file and reports the
// outcome through the exit code: 0 when the reconciliation passed, 1 when
// it completed with a FAIL verdict, 2 when the run did not complete.
func runOnce(path string, svc services.RunService, logger *zap.Logger) int {
	def, err := models.LoadRunDefinition(path)
	if err != nil {
		logger.Error("Failed to load run definition", zap.String("path", path), zap.Error(err))
		return 2
	}

	run, err := svc.Submit(*def)
	if err != nil {
		logger.Error("Failed to submit run", zap.Error(err))
		return 2
	}

	final, err := svc.WaitForRun(context.Background(), run.ID)
	if err != nil {
		logger.Error("Failed waiting for run", zap.Error(err))
		return 2
	}

	if final.Status != models.RunCompleted {
		logger.Error("Run did not complete",
			zap.String("run_id", run.ID.String()),
			zap.String("status", string(final.Status)),
			zap.String("error", final.Error))
		return 2
	}

	report, err := svc.Report(run.ID)
	if err != nil {
		logger.Error("Failed to read report", zap.Error(err))
		return 2
	}
	logger.Info("Run completed",
		zap.String("run_id", run.ID.String()),
		zap.String("verdict", string(report.Summary.OverallStatus)),
		zap.Int("matched_rows", report.Summary.MatchedRows),
		zap.Strings("artifacts", final.ExportPaths))
	if report.Summary.OverallStatus == models.StatusPass {
		return 0
	}
	return 1
}
