package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/carelink-health/medkb/internal/domain"
	"github.com/carelink-health/medkb/internal/index"
	"github.com/carelink-health/medkb/internal/telemetry"
)

// ChunkWriter is the chunk persistence capability the ingestion service
// needs.
type ChunkWriter interface {
	InsertChunks(ctx context.Context, chunks []*domain.KnowledgeChunk) error
	DeactivateByDocument(ctx context.Context, documentTitle string) (int64, error)
	ListDocuments(ctx context.Context) ([]*domain.DocumentSummary, error)
}

// DocumentArchiver stores the raw ingested document for provenance.
type DocumentArchiver interface {
	ArchiveDocument(ctx context.Context, key string, body []byte) (string, error)
}

// IndexRebuilder republishes the term index after the corpus changes.
type IndexRebuilder interface {
	Rebuild(ctx context.Context) (index.IndexStats, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// IngestionService turns raw guideline documents into active, embedded
// corpus chunks. Ingestion is additive: re-ingesting a document deactivates
// its previous chunks rather than deleting them.
type IngestionService struct {
	chunks   ChunkWriter
	embedder Embedder
	archiver DocumentArchiver
	rebuild  IndexRebuilder
	uuidGen  UUIDGenerator
	chunkCfg ChunkConfig
}

// NewIngestionService creates an IngestionService. embedder and archiver may
// be nil: without an embedder new chunks are inserted unembedded and left for
// the backfill worker; without an archiver raw documents are not retained.
func NewIngestionService(chunks ChunkWriter, embedder Embedder, archiver DocumentArchiver, rebuild IndexRebuilder) *IngestionService {
	return &IngestionService{
		chunks:   chunks,
		embedder: embedder,
		archiver: archiver,
		rebuild:  rebuild,
		uuidGen:  &DefaultUUIDGenerator{},
		chunkCfg: DefaultChunkConfig(),
	}
}

// NewIngestionServiceWithUUIDGen creates an IngestionService with a custom
// UUID generator (for testing).
func NewIngestionServiceWithUUIDGen(chunks ChunkWriter, embedder Embedder, archiver DocumentArchiver, rebuild IndexRebuilder, uuidGen UUIDGenerator) *IngestionService {
	svc := NewIngestionService(chunks, embedder, archiver, rebuild)
	svc.uuidGen = uuidGen
	return svc
}

// IngestInput is one document to ingest.
type IngestInput struct {
	DocumentTitle string
	Category      string
	SourceFile    string
	Body          string
}

// IngestResult reports what one ingestion produced.
type IngestResult struct {
	DocumentTitle string
	ChunkCount    int
	EmbeddedCount int
	Deactivated   int64
	ArchiveKey    string
	IndexStats    index.IndexStats
}

// IngestDocument splits the document into sections and chunks, embeds each
// chunk, inserts the batch, and rebuilds the term index. Embedding failures
// leave the chunk unembedded for the backfill worker; they do not abort the
// ingestion.
func (s *IngestionService) IngestDocument(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingestion.ingest_document", telemetry.SpanAttributes{
		DocumentTitle: input.DocumentTitle,
		Category:      input.Category,
		Operation:     "ingest",
	})
	defer span.End()

	if input.DocumentTitle == "" || input.Category == "" || input.Body == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document title, category and body are required")
	}

	now := time.Now().UTC()
	var batch []*domain.KnowledgeChunk
	embedded := 0

	for _, sec := range splitSections(input.Body) {
		for _, text := range chunkText(sec.Text, s.chunkCfg) {
			chunk := &domain.KnowledgeChunk{
				ID:            s.uuidGen.NewString(),
				DocumentTitle: input.DocumentTitle,
				SectionTitle:  sec.Title,
				Category:      input.Category,
				Text:          text,
				SourceFile:    input.SourceFile,
				IsActive:      true,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := domain.ValidateKnowledgeChunk(chunk); err != nil {
				return nil, err
			}

			if s.embedder != nil {
				embedding, err := s.embedder.GenerateEmbedding(ctx, text)
				if err != nil {
					log.Printf("ingestion: embedding failed for chunk %s, leaving for backfill: %v", chunk.ID, err)
				} else {
					chunk.Embedding = embedding
					embedded++
				}
			}

			batch = append(batch, chunk)
		}
	}

	if len(batch) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document produced no chunks")
	}

	// Supersede any previous ingestion of this document before the new
	// chunks go live.
	deactivated, err := s.chunks.DeactivateByDocument(ctx, input.DocumentTitle)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if err := s.chunks.InsertChunks(ctx, batch); err != nil {
		span.SetError(err)
		return nil, err
	}

	result := &IngestResult{
		DocumentTitle: input.DocumentTitle,
		ChunkCount:    len(batch),
		EmbeddedCount: embedded,
		Deactivated:   deactivated,
	}

	if s.archiver != nil {
		key := fmt.Sprintf("documents/%s/%s.md", input.Category, input.DocumentTitle)
		archiveKey, err := s.archiver.ArchiveDocument(ctx, key, []byte(input.Body))
		if err != nil {
			log.Printf("ingestion: failed to archive document %q: %v", input.DocumentTitle, err)
		} else {
			result.ArchiveKey = archiveKey
		}
	}

	if s.rebuild != nil {
		stats, err := s.rebuild.Rebuild(ctx)
		if err != nil {
			log.Printf("ingestion: index rebuild failed after ingesting %q: %v", input.DocumentTitle, err)
		} else {
			result.IndexStats = stats
		}
	}

	return result, nil
}

// DeactivateDocument soft-deletes every chunk of a document and rebuilds the
// index. Returns ErrDocumentNotFound when no active chunks matched.
func (s *IngestionService) DeactivateDocument(ctx context.Context, documentTitle string) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingestion.deactivate_document", telemetry.SpanAttributes{
		DocumentTitle: documentTitle,
		Operation:     "deactivate",
	})
	defer span.End()

	if documentTitle == "" {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "document title is required")
	}

	deactivated, err := s.chunks.DeactivateByDocument(ctx, documentTitle)
	if err != nil {
		span.SetError(err)
		return 0, err
	}
	if deactivated == 0 {
		return 0, domain.ErrDocumentNotFound
	}

	if s.rebuild != nil {
		if _, err := s.rebuild.Rebuild(ctx); err != nil {
			log.Printf("ingestion: index rebuild failed after deactivating %q: %v", documentTitle, err)
		}
	}

	return deactivated, nil
}

// ListDocuments returns the aggregate view of ingested documents.
func (s *IngestionService) ListDocuments(ctx context.Context) ([]*domain.DocumentSummary, error) {
	return s.chunks.ListDocuments(ctx)
}
