package admin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carelink-health/medkb/internal/config"
	"github.com/carelink-health/medkb/internal/database"
	"github.com/carelink-health/medkb/internal/extract"
	"github.com/carelink-health/medkb/internal/index"
	"github.com/carelink-health/medkb/internal/openai"
	"github.com/carelink-health/medkb/internal/repository"
	"github.com/carelink-health/medkb/internal/service"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest guideline documents into the corpus",
		Long:  "Chunk, embed and store one or more markdown documents. The document title is the file name without extension.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if category == "" {
				return fmt.Errorf("--category is required")
			}
			return runIngest(cmd, args, category)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Knowledge base category for the ingested documents")

	return cmd
}

func runIngest(cmd *cobra.Command, files []string, category string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	chunkRepo := repository.NewChunkRepository(pool)

	var embedder service.Embedder
	if cfg.HasOpenAI() {
		embedder = openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingModel:      cfg.EmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		})
	} else {
		cmd.Println("no OpenAI API key configured, chunks will be embedded by the backfill worker")
	}

	analyzer := index.NewAnalyzer(chunkRepo, extract.NewTermExtractor(nil))
	svc := service.NewIngestionService(chunkRepo, embedder, nil, analyzer)

	for _, path := range files {
		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		result, err := svc.IngestDocument(ctx, service.IngestInput{
			DocumentTitle: title,
			Category:      category,
			SourceFile:    filepath.Base(path),
			Body:          string(body),
		})
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}

		cmd.Printf("%s: %d chunks (%d embedded, %d superseded)\n",
			result.DocumentTitle, result.ChunkCount, result.EmbeddedCount, result.Deactivated)
	}

	return nil
}
