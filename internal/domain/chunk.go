package domain

import "time"

// KnowledgeChunk is the minimal retrievable unit of the medical corpus: a
// contiguous span of guideline text carrying its own embedding. Chunks are
// created at ingestion time and never deleted; superseded content is
// soft-deactivated so historical retrievals stay attributable.
type KnowledgeChunk struct {
	ID             string
	DocumentTitle  string
	SectionTitle   string
	Category       string
	Text           string
	SourceFile     string
	Embedding      []float32 // nil until the embedding worker fills it
	IsActive       bool
	RetrievalCount int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Preview returns the first n runes of the chunk text, used for lightweight
// index references and API responses.
func (c *KnowledgeChunk) Preview(n int) string {
	runes := []rune(c.Text)
	if len(runes) <= n {
		return c.Text
	}
	return string(runes[:n])
}

// ValidateKnowledgeChunk validates a KnowledgeChunk instance prior to insert.
func ValidateKnowledgeChunk(c *KnowledgeChunk) error {
	if c == nil {
		return ErrMissingRequiredField
	}
	if c.ID == "" {
		return NewDomainError(ErrCodeValidation, "chunk ID is required")
	}
	if c.DocumentTitle == "" {
		return NewDomainError(ErrCodeValidation, "chunk document title is required")
	}
	if c.Text == "" {
		return NewDomainError(ErrCodeValidation, "chunk text is required")
	}
	if c.Category == "" {
		return NewDomainError(ErrCodeValidation, "chunk category is required")
	}
	return nil
}
