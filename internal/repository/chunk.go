package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/carelink-health/medkb/internal/domain"
)

// ChunkRepository handles persistence of corpus chunks and their embeddings.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// InsertChunks inserts a batch of chunks in one round trip.
func (r *ChunkRepository) InsertChunks(ctx context.Context, chunks []*domain.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		var embedding *pgvector.Vector
		if len(c.Embedding) > 0 {
			v := pgvector.NewVector(c.Embedding)
			embedding = &v
		}
		batch.Queue(
			`INSERT INTO kb_chunks
				(id, document_title, section_title, category, content, source_file, embedding, is_active, retrieval_count, created_at, updated_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			c.ID,
			c.DocumentTitle,
			nullableString(c.SectionTitle),
			c.Category,
			c.Text,
			nullableString(c.SourceFile),
			embedding,
			c.IsActive,
			c.RetrievalCount,
			c.CreatedAt,
			c.UpdatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range chunks {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListActive returns every active chunk with its embedding. The retrieval
// service scores these in process, so the full corpus comes back in one
// query.
func (r *ChunkRepository) ListActive(ctx context.Context) ([]*domain.KnowledgeChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_title, section_title, category, content, source_file, embedding, is_active, retrieval_count, created_at, updated_at
		 FROM kb_chunks
		 WHERE is_active
		 ORDER BY document_title, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListMissingEmbeddings returns active chunks without an embedding, oldest
// first, for the backfill worker.
func (r *ChunkRepository) ListMissingEmbeddings(ctx context.Context, limit int) ([]*domain.KnowledgeChunk, error) {
	if limit <= 0 {
		limit = 16
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, document_title, section_title, category, content, source_file, embedding, is_active, retrieval_count, created_at, updated_at
		 FROM kb_chunks
		 WHERE is_active AND embedding IS NULL
		 ORDER BY created_at, id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// UpdateEmbedding stores the embedding for one chunk.
func (r *ChunkRepository) UpdateEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE kb_chunks SET embedding = $1, updated_at = now() WHERE id = $2`,
		pgvector.NewVector(embedding), chunkID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

// IncrementRetrievalCount bumps the retrieval counter of the given chunks in
// one statement.
func (r *ChunkRepository) IncrementRetrievalCount(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE kb_chunks SET retrieval_count = retrieval_count + 1 WHERE id = ANY($1)`,
		chunkIDs,
	)
	return err
}

// DeactivateByDocument soft-deletes every active chunk of a document and
// returns how many were affected.
func (r *ChunkRepository) DeactivateByDocument(ctx context.Context, documentTitle string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE kb_chunks SET is_active = false, updated_at = now()
		 WHERE document_title = $1 AND is_active`,
		documentTitle,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountActive returns the number of active chunks.
func (r *ChunkRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM kb_chunks WHERE is_active`).Scan(&count)
	return count, err
}

// ListDocuments aggregates active chunks per document.
func (r *ChunkRepository) ListDocuments(ctx context.Context) ([]*domain.DocumentSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT document_title, category, coalesce(max(source_file), ''),
		        count(*), count(embedding), max(created_at)
		 FROM kb_chunks
		 WHERE is_active
		 GROUP BY document_title, category
		 ORDER BY document_title`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.DocumentSummary
	for rows.Next() {
		var d domain.DocumentSummary
		if err := rows.Scan(&d.DocumentTitle, &d.Category, &d.SourceFile, &d.ChunkCount, &d.EmbeddedCount, &d.LastIngested); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

func scanChunkRows(rows pgx.Rows) ([]*domain.KnowledgeChunk, error) {
	var chunks []*domain.KnowledgeChunk
	for rows.Next() {
		var c domain.KnowledgeChunk
		var sectionTitle, sourceFile *string
		var embedding *pgvector.Vector
		if err := rows.Scan(
			&c.ID, &c.DocumentTitle, &sectionTitle, &c.Category, &c.Text, &sourceFile,
			&embedding, &c.IsActive, &c.RetrievalCount, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if sectionTitle != nil {
			c.SectionTitle = *sectionTitle
		}
		if sourceFile != nil {
			c.SourceFile = *sourceFile
		}
		if embedding != nil {
			c.Embedding = embedding.Slice()
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}
