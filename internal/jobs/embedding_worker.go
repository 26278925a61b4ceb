package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/carelink-health/medkb/internal/domain"
	"github.com/carelink-health/medkb/internal/index"
)

// ChunkBackfillRepository is the chunk persistence the backfill worker needs.
type ChunkBackfillRepository interface {
	ListMissingEmbeddings(ctx context.Context, limit int) ([]*domain.KnowledgeChunk, error)
	UpdateEmbedding(ctx context.Context, chunkID string, embedding []float32) error
}

// Embedder generates an embedding vector for a piece of text.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// IndexRebuilder republishes the term index after the corpus changes.
type IndexRebuilder interface {
	Built() bool
	Rebuild(ctx context.Context) (index.IndexStats, error)
}

// EmbeddingWorker backfills embeddings for chunks that were ingested while
// the embedding provider was unavailable. Idempotent: a chunk drops out of
// the work queue the moment its embedding lands.
type EmbeddingWorker struct {
	repo      ChunkBackfillRepository
	embedder  Embedder
	rebuilder IndexRebuilder
	batchSize int
}

// NewEmbeddingWorker creates a new EmbeddingWorker instance. rebuilder may be
// nil when no index refresh is wanted after a backfill pass.
func NewEmbeddingWorker(repo ChunkBackfillRepository, embedder Embedder, rebuilder IndexRebuilder, batchSize int) *EmbeddingWorker {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &EmbeddingWorker{
		repo:      repo,
		embedder:  embedder,
		rebuilder: rebuilder,
		batchSize: batchSize,
	}
}

// ProcessJobs implements the JobProcessor interface.
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	chunks, err := w.repo.ListMissingEmbeddings(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list chunks missing embeddings: %w", err)
	}

	if len(chunks) == 0 {
		return nil
	}

	log.Printf("Backfilling embeddings for %d chunks", len(chunks))

	backfilled := 0
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.processChunk(ctx, chunk); err != nil {
			// Leave the chunk in the queue; the next pass retries it.
			log.Printf("Error backfilling chunk %s: %v", chunk.ID, err)
			continue
		}
		backfilled++
	}

	if backfilled > 0 && w.rebuilder != nil && w.rebuilder.Built() {
		if _, err := w.rebuilder.Rebuild(ctx); err != nil {
			log.Printf("Error rebuilding index after backfill: %v", err)
		}
	}

	return nil
}

func (w *EmbeddingWorker) processChunk(ctx context.Context, chunk *domain.KnowledgeChunk) error {
	embedding, err := w.embedder.GenerateEmbedding(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if err := w.repo.UpdateEmbedding(ctx, chunk.ID, embedding); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}
