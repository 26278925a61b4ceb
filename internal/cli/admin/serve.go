package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/carelink-health/medkb/internal/api/handlers"
	"github.com/carelink-health/medkb/internal/config"
	"github.com/carelink-health/medkb/internal/database"
	"github.com/carelink-health/medkb/internal/extract"
	"github.com/carelink-health/medkb/internal/index"
	"github.com/carelink-health/medkb/internal/jobs"
	"github.com/carelink-health/medkb/internal/openai"
	"github.com/carelink-health/medkb/internal/repository"
	"github.com/carelink-health/medkb/internal/server"
	"github.com/carelink-health/medkb/internal/service"
	"github.com/carelink-health/medkb/internal/storage"
	"github.com/carelink-health/medkb/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the medkb retrieval API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: cfg.SentryTracesSampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunkRepo := repository.NewChunkRepository(pool)
	logRepo := repository.NewRetrievalLogRepository(pool)

	var embedder service.Embedder
	if cfg.HasOpenAI() {
		embedder = openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingModel:      cfg.EmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		})
	} else {
		log.Println("no OpenAI API key configured, vector search disabled")
	}

	var archiver service.DocumentArchiver
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archiver = s3Client
	}

	analyzer := index.NewAnalyzer(chunkRepo, extract.NewTermExtractor(nil))
	// Build in the background so a large corpus does not delay the listener.
	// The term branch degrades until the build completes.
	go func() {
		if stats, err := analyzer.Rebuild(ctx); err != nil {
			log.Printf("initial index build failed: %v", err)
		} else {
			log.Printf("term index ready: %d chunks, %d terms", stats.TotalChunks, stats.UniqueTerms)
		}
	}()

	retrievalCfg := service.DefaultRetrievalConfig()
	retrievalCfg.CandidateLimit = cfg.RetrievalCandidates
	retrievalCfg.EmbedTimeout = cfg.EmbedTimeout
	retrievalCfg.DefaultTopK = cfg.RetrievalTopK
	retrievalCfg.DefaultMinSimilarity = cfg.RetrievalMinSimilarity

	extractor := extract.NewExtractor()
	retrievalSvc := service.NewRetrievalService(chunkRepo, embedder, analyzer, extractor, logRepo, retrievalCfg)
	ingestionSvc := service.NewIngestionService(chunkRepo, embedder, archiver, analyzer)

	var backfillWorker *jobs.Worker
	if cfg.WorkerEnabled && embedder != nil {
		processor := jobs.NewEmbeddingWorker(chunkRepo, embedder, analyzer, cfg.WorkerBatchSize)
		backfillWorker = jobs.NewWorker(processor, cfg.WorkerPollInterval)
		go backfillWorker.Start(ctx)
		log.Println("embedding backfill worker started")
	}

	router := server.NewRouter(server.RouterConfig{
		APIKey:           cfg.APIKey,
		RetrievalHandler: handlers.NewRetrievalHandler(retrievalSvc),
		KnowledgeHandler: handlers.NewKnowledgeHandler(ingestionSvc),
		IndexHandler:     handlers.NewIndexHandler(analyzer),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if backfillWorker != nil {
		backfillWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql connection
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database at version %d", version)
	}

	return nil
}
