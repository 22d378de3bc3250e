package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/episoded/episoded/internal/cleanup"
	"github.com/episoded/episoded/internal/collaborator"
	"github.com/episoded/episoded/internal/collaborator/collaboratortest"
	"github.com/episoded/episoded/internal/config"
	"github.com/episoded/episoded/internal/database"
	"github.com/episoded/episoded/internal/database/migrations"
	"github.com/episoded/episoded/internal/discovery"
	internalhttp "github.com/episoded/episoded/internal/http"
	"github.com/episoded/episoded/internal/http/handlers"
	"github.com/episoded/episoded/internal/jobqueue"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/naming"
	"github.com/episoded/episoded/internal/observability"
	"github.com/episoded/episoded/internal/pathresolve"
	"github.com/episoded/episoded/internal/pipeline/core"
	"github.com/episoded/episoded/internal/pipeline/stages"
	"github.com/episoded/episoded/internal/repository"
	logsvc "github.com/episoded/episoded/internal/service/logs"
	"github.com/episoded/episoded/internal/startup"
	"github.com/episoded/episoded/internal/storage"
	"github.com/episoded/episoded/internal/stuckdetector"
	"github.com/episoded/episoded/internal/version"
	"github.com/episoded/episoded/internal/webhook"
	"github.com/episoded/episoded/pkg/httpclient"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the episoded server",
	Long: `Start the episoded HTTP server and job queue.

The server provides:
- An async job API for processing episodes through the pipeline
- Inline endpoints for episode/clip discovery and registry reads
- Health, readiness and liveness probes
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database-dsn", "episoded.db", "Database DSN (file path for sqlite)")
	serveCmd.Flags().String("storage-dir", "data", "Storage sandbox root for source files and outputs")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database-dsn"))
	mustBindPFlag("storage.base_dir", serveCmd.Flags().Lookup("storage-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("database-dsn") {
		cfg.Database.DSN, _ = flags.GetString("database-dsn")
	}
	if flags.Changed("storage-dir") {
		cfg.Storage.BaseDir, _ = flags.GetString("storage-dir")
	}

	logger = observability.NewLogger(cfg.Logging)

	logsService := logsvc.New()
	logger = slog.New(logsService.WrapHandler(logger.Handler()))
	slog.SetDefault(logger)

	if removed, err := startup.CleanupOrphanedTempDirs(logger, cfg.Storage.TempPath(), 24*time.Hour); err != nil {
		logger.Warn("failed to clean orphaned temp directories", slog.String("error", err.Error()))
	} else if removed > 0 {
		logger.Info("cleaned orphaned temp directories on startup", slog.Int("removed_count", removed))
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	episodeRepo := repository.NewEpisodeRepository(db.DB)
	clipRepo := repository.NewClipRepository(db.DB)
	clipAssetRepo := repository.NewClipAssetRepository(db.DB)
	jobHistoryRepo := repository.NewJobHistoryRepository(db.DB)

	sandbox, err := storage.NewSandbox(cfg.Storage.BaseDir)
	if err != nil {
		return fmt.Errorf("initializing storage sandbox: %w", err)
	}

	mappings, err := cfg.Naming.LoadShowMappings()
	if err != nil {
		return fmt.Errorf("loading show mappings: %w", err)
	}
	namingService := naming.New(mappings)

	artifactStore := storage.NewArtifactStore(sandbox, namingService)
	pathResolver := pathresolve.New(cfg.Storage.BaseDir, cfg.Storage.Aliases(), episodeRepo)
	discoverySvc := discovery.New(sandbox, episodeRepo, namingService)

	orchestrator, err := buildOrchestrator(cfg, episodeRepo, clipRepo, clipAssetRepo, artifactStore, namingService, pathResolver, logger)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	renderEncoder := collaboratortest.NewEncoder()
	executors := map[models.JobType]jobqueue.Executor{
		models.JobTypeProcessEpisode:   jobqueue.NewProcessEpisodeExecutor(episodeRepo, orchestrator),
		models.JobTypeDiscoverEpisodes: jobqueue.NewDiscoverEpisodesExecutor(discoverySvc),
		models.JobTypeRenderClips:      jobqueue.NewRenderClipsExecutor(clipRepo, clipAssetRepo, artifactStore, pathResolver, episodeRepo, renderEncoder),
	}

	clientFactory := httpclient.NewClientFactory(httpclient.DefaultManager).WithLogger(logger)
	webhookDispatcher := webhook.New(clientFactory, cfg.JobQueue.Webhook, logger)

	queue := jobqueue.New(jobqueue.Config{
		MaxWorkers:    cfg.JobQueue.MaxWorkers,
		QueueCapacity: cfg.JobQueue.QueueCapacity,
	}, executors, jobHistoryRepo, webhookDispatcher, logger)
	defer queue.Stop()

	detector := stuckdetector.New(queue, cfg.JobQueue.ResolvedStageTimeouts(), cfg.JobQueue.StuckCheckInterval, logger)
	go detector.Run(ctx)

	cleanupMgr := cleanup.New(jobHistoryRepo, episodeRepo, artifactStore, cfg.Storage, cfg.Cleanup, logger)
	go cleanupMgr.Run(ctx)

	var scheduler *cron.Cron
	if cfg.JobQueue.DiscoverySchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.JobQueue.DiscoverySchedule, func() {
			if _, err := queue.Submit(models.JobTypeDiscoverEpisodes, jobqueue.SubmitOptions{}); err != nil {
				logger.Error("scheduled discovery submit failed", slog.String("error", err.Error()))
			}
		})
		if err != nil {
			return fmt.Errorf("parsing discovery_schedule: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	serverConfig := internalhttp.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	if cfg.Server.ReadTimeout > 0 {
		serverConfig.ReadTimeout = cfg.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout > 0 {
		serverConfig.WriteTimeout = cfg.Server.WriteTimeout
	}
	if cfg.Server.ShutdownTimeout > 0 {
		serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}

	server := internalhttp.NewServer(serverConfig, logger, version.Short())

	docsHandler := handlers.NewDocsHandler("episoded API", "/openapi.yaml", handlers.WithSystemTheme())
	server.Router().Get("/docs", docsHandler.ServeHTTP)

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(queue.Collectors()...)
	server.Router().Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))

	handlers.NewHealthHandler(version.Short()).
		WithDB(db.DB).
		WithArtifactDir(cfg.Storage.BaseDir).
		WithQueueStats(queue).
		Register(server.API())

	handlers.NewJobHandler(queue, episodeRepo).
		WithStuckChecker(detector).
		Register(server.API())

	handlers.NewEpisodeHandler(episodeRepo, discoverySvc).
		WithLogger(logger).
		Register(server.API())

	handlers.NewClipHandler(episodeRepo, clipRepo, collaboratortest.NewClipSegmenter(), cfg.Clips).
		WithLogger(logger).
		Register(server.API())

	handlers.NewCircuitBreakerHandler(httpclient.DefaultManager).Register(server.API())

	logsHandler := handlers.NewLogsHandler(logsService)
	logsHandler.Register(server.API())
	logsHandler.RegisterSSE(server.Router())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting episoded server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Short()),
	)

	return server.ListenAndServe(ctx)
}

// buildOrchestrator wires every pipeline stage against a single shared
// Dependencies bundle, in stage-chain order (prep, transcription,
// enrichment, rendering, clip discovery), and applies the configured
// per-stage progress weights.
func buildOrchestrator(
	cfg *config.Config,
	episodeRepo repository.EpisodeRepository,
	clipRepo repository.ClipRepository,
	clipAssetRepo repository.ClipAssetRepository,
	artifactStore *storage.ArtifactStore,
	namingService *naming.Service,
	pathResolver *pathresolve.Resolver,
	logger *slog.Logger,
) (*core.Orchestrator, error) {
	builder := core.NewBuilder().
		WithEpisodeRepository(episodeRepo).
		WithClipRepository(clipRepo).
		WithClipAssetRepository(clipAssetRepo).
		WithArtifactStore(artifactStore).
		WithNaming(namingService).
		WithPathResolver(pathResolver).
		WithLogger(logger).
		WithProber(collaboratortest.NewProber()).
		WithTranscriber(collaboratortest.NewTranscriber()).
		WithEnricher(collaboratortest.NewEnricher()).
		WithClipSegmenter(collaboratortest.NewClipSegmenter()).
		WithEncoder(collaboratortest.NewEncoder())

	factory, err := builder.Build()
	if err != nil {
		return nil, err
	}

	factory.RegisterStage(func(deps *core.Dependencies) core.Stage {
		return stages.NewPrep(deps.Episodes, deps.Paths, deps.Prober)
	})
	factory.RegisterStage(func(deps *core.Dependencies) core.Stage {
		return stages.NewTranscription(deps.Episodes, deps.Artifacts, deps.Paths, deps.Transcriber)
	})
	factory.RegisterStage(func(deps *core.Dependencies) core.Stage {
		return stages.NewEnrichment(deps.Episodes, deps.Naming, deps.Enricher)
	})
	factory.RegisterStage(func(deps *core.Dependencies) core.Stage {
		return stages.NewRendering(deps.Episodes, deps.Artifacts, deps.Paths, deps.Encoder)
	})
	factory.RegisterStage(func(deps *core.Dependencies) core.Stage {
		return stages.NewClipDiscovery(deps.Episodes, deps.Clips, deps.ClipSegmenter, collaboratorClipConfig(cfg))
	})

	orchestrator := factory.Create().WithStageWeights(cfg.JobQueue.ResolvedStageWeights())
	return orchestrator, nil
}

func collaboratorClipConfig(cfg *config.Config) collaborator.ClipConfig {
	return collaborator.ClipConfig{
		MaxClips:    cfg.Clips.MaxClips,
		MinDuration: cfg.Clips.MinDuration,
		MaxDuration: cfg.Clips.MaxDuration,
		Threshold:   cfg.Clips.Threshold,
	}
}
