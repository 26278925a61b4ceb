package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink-health/medkb/internal/domain"
)

// RetrievalLogRepository persists retrieval outcomes for offline analysis.
type RetrievalLogRepository struct {
	db dbtx
}

func NewRetrievalLogRepository(pool *pgxpool.Pool) *RetrievalLogRepository {
	return &RetrievalLogRepository{db: pool}
}

func (r *RetrievalLogRepository) Insert(ctx context.Context, rec *domain.RetrievalLog) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO retrieval_logs
			(id, query, enhanced_query, entity_count, source_count, chunk_count, top_category, patient_age, duration_ms, created_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, now())`,
		rec.ID, rec.Query, rec.EnhancedQuery, rec.EntityCount, rec.SourceCount,
		rec.ChunkCount, nullableString(rec.TopCategory), rec.PatientAge, rec.DurationMS,
	)
	return err
}

// ListRecent returns the newest retrieval logs, most recent first.
func (r *RetrievalLogRepository) ListRecent(ctx context.Context, limit int) ([]*domain.RetrievalLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, query, enhanced_query, entity_count, source_count, chunk_count, top_category, patient_age, duration_ms, created_at
		 FROM retrieval_logs
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.RetrievalLog
	for rows.Next() {
		var rec domain.RetrievalLog
		var topCategory *string
		if err := rows.Scan(
			&rec.ID, &rec.Query, &rec.EnhancedQuery, &rec.EntityCount, &rec.SourceCount,
			&rec.ChunkCount, &topCategory, &rec.PatientAge, &rec.DurationMS, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if topCategory != nil {
			rec.TopCategory = *topCategory
		}
		logs = append(logs, &rec)
	}
	return logs, rows.Err()
}
