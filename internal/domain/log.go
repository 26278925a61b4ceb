package domain

import "time"

// RetrievalLog is one completed knowledge selection, persisted for corpus
// tuning and retrieval quality analysis.
type RetrievalLog struct {
	ID            string
	Query         string
	EnhancedQuery string
	EntityCount   int
	SourceCount   int
	ChunkCount    int
	TopCategory   string
	PatientAge    *int
	DurationMS    int64
	CreatedAt     time.Time
}
