package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/gl-mapper/internal/api/handlers"
	"github.com/dvloznov/gl-mapper/internal/api/middleware"
	"github.com/dvloznov/gl-mapper/internal/config"
	infraBQ "github.com/dvloznov/gl-mapper/internal/infra/bigquery"
	"github.com/dvloznov/gl-mapper/internal/ingest"
	"github.com/dvloznov/gl-mapper/internal/issuelog"
	"github.com/dvloznov/gl-mapper/internal/jobs"
	"github.com/dvloznov/gl-mapper/internal/jobs/inmemory"
	"github.com/dvloznov/gl-mapper/internal/logger"
	"github.com/dvloznov/gl-mapper/internal/mapping"
	"github.com/dvloznov/gl-mapper/internal/pipeline"
	"github.com/dvloznov/gl-mapper/internal/schema"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config.toml (default: ./config.toml if present)")
		port       = flag.Int("port", 0, "HTTP server port (overrides config and PORT)")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.RequireLLM(); err != nil {
		log.Fatal().Err(err).Msg("No model credential configured")
	}

	sessionLog, closer, err := logger.NewSession(logger.SessionConfig{
		Level: cfg.Logging.Level,
		Dir:   cfg.Logging.Dir,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session log")
	}
	defer closer.Close()
	log = sessionLog

	targetSchema, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Schema.Path).Msg("Failed to load target schema")
	}

	ctx := logger.WithContext(context.Background(), log)

	model, err := mapping.NewGeminiModel(ctx, mapping.GeminiConfig{
		APIKey:    cfg.LLM.APIKey,
		UseVertex: cfg.LLM.UseVertex,
		Project:   cfg.LLM.Project,
		Location:  cfg.LLM.Location,
		ModelName: cfg.LLM.Model,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create model client")
	}
	proposer := mapping.NewProposer(model)
	loader := ingest.NewLoader()

	session := &pipeline.Session{
		Schema:     targetSchema,
		SchemaPath: cfg.Schema.Path,
		ModelName:  cfg.LLM.Model,
		Source:     loader,
		Sink:       loader,
		Proposer:   proposer,
		Issues:     issuelog.New(cfg.Output.IssueLog),
		Log:        log,
	}

	exportHandler := &jobs.ExportHandler{Sink: loader}
	export := handlers.ExportConfig{Bucket: cfg.GCS.Bucket}
	paths := handlers.Paths{
		DataRoot:  cfg.Server.DataRoot,
		Bucket:    cfg.GCS.Bucket,
		OutputDir: cfg.Server.OutputDir,
	}
	if paths.DataRoot == "" {
		log.Warn().Msg("No data root configured - API requests can only read gs:// sources")
	}

	if cfg.BigQueryEnabled() {
		repo, err := infraBQ.NewBigQueryRepository(ctx, infraBQ.Dataset{
			ProjectID: cfg.BigQuery.Project,
			DatasetID: cfg.BigQuery.Dataset,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()

		session.Runs = repo
		exportHandler.Warehouse = repo
		export.Table = cfg.BigQuery.ExportTable
	} else {
		log.Warn().Msg("BigQuery not configured - run auditing and warehouse exports are disabled")
	}
	if cfg.GCS.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - storage exports are disabled")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.Server.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.Server.Workers).Msg("Starting export workers")
	if err := jobQueue.Start(workerCtx, exportHandler.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start export workers")
	}

	mux := handlers.NewRouter(handlers.Router{
		Schema:    handlers.NewSchemaHandler(targetSchema),
		Mappings:  handlers.NewMappingsHandler(targetSchema, loader, proposer, paths),
		Transform: handlers.NewTransformHandler(session, jobQueue, export, paths),
		Jobs:      handlers.NewJobsHandler(jobStore, log),
	})

	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS(cfg.Server.CORSOrigins),
	)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight exports
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
