package domain

import "time"

// DocumentSummary is an aggregate view over the chunks of one ingested
// document, used by listings and admin tooling.
type DocumentSummary struct {
	DocumentTitle string
	Category      string
	SourceFile    string
	ChunkCount    int
	EmbeddedCount int
	LastIngested  time.Time
}
