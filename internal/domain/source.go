package domain

// ScoredChunk is a retrieval candidate: a chunk reference plus the similarity
// score it earned in the current request. SimilarityScore starts as cosine
// similarity (vector branch) or a normalized term-match score (term branch)
// and may be boosted by reranking.
type ScoredChunk struct {
	ChunkID         string
	Text            string
	SectionTitle    string
	DocumentTitle   string
	Category        string
	SourceFile      string
	SimilarityScore float64
	Source          RetrievalSource
	MatchedTerms    []string
}

// RetrievalSource names the branch of the hybrid search that produced a
// candidate.
type RetrievalSource string

const (
	SourceVector RetrievalSource = "vector"
	SourceTerm   RetrievalSource = "term"
)

// KnowledgeSource groups selected chunks by category for presentation.
// RelevanceScore is the arithmetic mean over the category's full candidate
// set, computed before the chunk list is capped. Transient, built per request.
type KnowledgeSource struct {
	Category        string
	RelevanceScore  float64
	Chunks          []ScoredChunk
	SelectionReason string
}
