package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carelink-health/medkb/internal/config"
	"github.com/carelink-health/medkb/internal/database"
	"github.com/carelink-health/medkb/internal/extract"
	"github.com/carelink-health/medkb/internal/index"
	"github.com/carelink-health/medkb/internal/repository"
)

// IndexCmd returns the index command group
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the term index",
	}

	cmd.AddCommand(indexRebuildCmd())
	cmd.AddCommand(indexStatsCmd())

	return cmd
}

func indexRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Build the term index from the active corpus and print its statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := buildIndex(cmd.Context())
			if err != nil {
				return err
			}
			printIndexStats(cmd, stats)
			return nil
		},
	}
}

func indexStatsCmd() *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print corpus and term index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := buildIndex(cmd.Context())
			if err != nil {
				return err
			}
			printIndexStats(cmd, stats)

			if topN > 0 {
				cmd.Println("top terms:")
				for i, tf := range stats.TopTerms {
					if i >= topN {
						break
					}
					cmd.Printf("  %-20s %d\n", tf.Term, tf.Count)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topN, "top", 10, "Number of top terms to print")
	return cmd
}

// buildIndex connects to the database and builds a fresh index generation.
// The CLI has no long-lived process to keep it in, so stats always reflect a
// just-built index.
func buildIndex(ctx context.Context) (index.IndexStats, error) {
	cfg, err := config.Load()
	if err != nil {
		return index.IndexStats{}, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.Config{})
	if err != nil {
		return index.IndexStats{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	analyzer := index.NewAnalyzer(repository.NewChunkRepository(pool), extract.NewTermExtractor(nil))
	return analyzer.Rebuild(ctx)
}

func printIndexStats(cmd *cobra.Command, stats index.IndexStats) {
	cmd.Printf("chunks:    %d\n", stats.TotalChunks)
	cmd.Printf("terms:     %d\n", stats.UniqueTerms)
	cmd.Printf("documents: %d\n", stats.DocumentCount)
	cmd.Printf("built at:  %s\n", stats.BuiltAt)
}
