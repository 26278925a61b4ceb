package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/carelink-health/medkb/internal/domain"
	"github.com/carelink-health/medkb/internal/index"
	"github.com/carelink-health/medkb/internal/telemetry"
)

// ChunkStore is the chunk persistence capability the retrieval service needs.
type ChunkStore interface {
	ListActive(ctx context.Context) ([]*domain.KnowledgeChunk, error)
	IncrementRetrievalCount(ctx context.Context, chunkIDs []string) error
}

// Embedder generates an embedding vector for a piece of text.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// TermSearcher is the term-branch search capability, backed by the inverted
// index.
type TermSearcher interface {
	FindRelatedChunks(query string, documentTexts []string, topK int) ([]index.TermMatch, error)
}

// EntityExtractor pulls medical entities out of free text.
type EntityExtractor interface {
	Extract(text string) []domain.MedicalEntity
}

// RetrievalLogStore records completed retrievals for offline analysis.
type RetrievalLogStore interface {
	Insert(ctx context.Context, rec *domain.RetrievalLog) error
}

// RetrievalConfig carries the tunables of the retrieval pipeline. Zero values
// fall back to the defaults the corpus was calibrated with.
type RetrievalConfig struct {
	// CandidateLimit bounds each search branch and the merged candidate set.
	CandidateLimit int
	// TermMatchBase and TermMatchStep map a term match count onto the same
	// scale as cosine similarity: base + step*count.
	TermMatchBase float64
	TermMatchStep float64
	// OverlapBonus is the rerank boost per token shared with the document
	// context.
	OverlapBonus float64
	// TestResultBonus is the rerank boost for test-result vocabulary when the
	// document context mentions test results.
	TestResultBonus float64
	// MaxChunksPerSource caps the chunks attached to one returned source.
	MaxChunksPerSource int
	// EmbedTimeout bounds the embedding call inside a retrieval.
	EmbedTimeout time.Duration
	// DefaultTopK and DefaultMinSimilarity apply when a request leaves them
	// unset.
	DefaultTopK          int
	DefaultMinSimilarity float64
}

// maxReturnedEntities caps the entity list attached to a selection result.
// Extraction stays uncapped internally so query enhancement sees everything.
const maxReturnedEntities = 10

// DefaultRetrievalConfig returns the calibrated defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		CandidateLimit:       20,
		TermMatchBase:        0.5,
		TermMatchStep:        0.1,
		OverlapBonus:         0.02,
		TestResultBonus:      0.1,
		MaxChunksPerSource:   5,
		EmbedTimeout:         10 * time.Second,
		DefaultTopK:          5,
		DefaultMinSimilarity: 0.5,
	}
}

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	def := DefaultRetrievalConfig()
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = def.CandidateLimit
	}
	if c.TermMatchBase == 0 {
		c.TermMatchBase = def.TermMatchBase
	}
	if c.TermMatchStep == 0 {
		c.TermMatchStep = def.TermMatchStep
	}
	if c.OverlapBonus == 0 {
		c.OverlapBonus = def.OverlapBonus
	}
	if c.TestResultBonus == 0 {
		c.TestResultBonus = def.TestResultBonus
	}
	if c.MaxChunksPerSource <= 0 {
		c.MaxChunksPerSource = def.MaxChunksPerSource
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = def.EmbedTimeout
	}
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = def.DefaultTopK
	}
	if c.DefaultMinSimilarity <= 0 {
		c.DefaultMinSimilarity = def.DefaultMinSimilarity
	}
	return c
}

// RetrievalService selects the knowledge base categories most relevant to a
// clinical query. The pipeline is: entity extraction, query enhancement,
// hybrid vector+term search, reranking against document context, and grouping
// into per-category sources with human-readable reasoning.
//
// Degradation contract: a missing embedder, a failed embedding call, an
// unbuilt index or an empty corpus narrow the result, they never fail the
// request. The only error SelectKnowledgeBases returns is a cancelled context.
type RetrievalService struct {
	chunks    ChunkStore
	embedder  Embedder
	searcher  TermSearcher
	extractor EntityExtractor
	logs      RetrievalLogStore
	cfg       RetrievalConfig
}

// NewRetrievalService creates a RetrievalService. embedder and logs may be
// nil; the vector branch and retrieval logging are then skipped.
func NewRetrievalService(chunks ChunkStore, embedder Embedder, searcher TermSearcher, extractor EntityExtractor, logs RetrievalLogStore, cfg RetrievalConfig) *RetrievalService {
	return &RetrievalService{
		chunks:    chunks,
		embedder:  embedder,
		searcher:  searcher,
		extractor: extractor,
		logs:      logs,
		cfg:       cfg.withDefaults(),
	}
}

// SelectInput is one knowledge selection request.
type SelectInput struct {
	Symptoms      string
	DocumentTexts []string
	// PatientAge is accepted for request logging and future routing; it does
	// not influence scoring.
	PatientAge *int
	// TopK caps the number of returned sources; 0 means the default.
	TopK int
	// MinSimilarity overrides the vector-branch cosine threshold. Nil means
	// the default; an explicit 0 (or negative) threshold is honored, since
	// cosine scores span [-1, 1].
	MinSimilarity *float64
}

// Selection is the result of one knowledge selection request.
type Selection struct {
	Sources            []domain.KnowledgeSource
	SelectionReasoning string
	TotalChunks        int
	ExtractedEntities  []domain.MedicalEntity
	EnhancedQuery      string
}

// SelectKnowledgeBases runs the full retrieval pipeline for one query.
func (s *RetrievalService) SelectKnowledgeBases(ctx context.Context, input SelectInput) (*Selection, error) {
	ctx, span := telemetry.StartSpan(ctx, "retrieval.select_knowledge_bases", telemetry.SpanAttributes{
		Operation: "select",
	})
	defer span.End()

	started := time.Now()

	topK := input.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	minSimilarity := s.cfg.DefaultMinSimilarity
	if input.MinSimilarity != nil {
		minSimilarity = *input.MinSimilarity
	}

	// Uploaded documents carry entities too: a lab report in the request is
	// extracted alongside the symptom text.
	extractionText := input.Symptoms
	if len(input.DocumentTexts) > 0 {
		extractionText = strings.TrimSpace(input.Symptoms + " " + strings.Join(input.DocumentTexts, " "))
	}
	entities := s.extractor.Extract(extractionText)
	enhanced := s.enhanceQuery(input.Symptoms, entities)

	candidates, err := s.hybridSearch(ctx, enhanced, input.DocumentTexts, minSimilarity)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	candidates = s.rerank(candidates, input.DocumentTexts)
	sources := s.selectTopSources(candidates, topK)

	returned := entities
	if len(returned) > maxReturnedEntities {
		returned = returned[:maxReturnedEntities]
	}

	selection := &Selection{
		Sources:            sources,
		SelectionReasoning: generateReasoning(sources, entities),
		ExtractedEntities:  returned,
		EnhancedQuery:      enhanced,
	}
	for _, src := range sources {
		selection.TotalChunks += len(src.Chunks)
	}

	s.logRetrieval(ctx, input, selection, time.Since(started))

	return selection, nil
}

// enhanceQuery widens the raw symptom text with high-confidence entities and
// retrieval hints keyed off the entity types present. Low-confidence entities
// stay out of the query; they add noise faster than recall.
func (s *RetrievalService) enhanceQuery(symptoms string, entities []domain.MedicalEntity) string {
	parts := []string{symptoms}

	hasTestResult := false
	hasLabValue := false
	for _, ent := range entities {
		if ent.Confidence >= 0.8 {
			parts = append(parts, ent.Text)
		}
		switch ent.Type {
		case domain.EntityTestResult:
			hasTestResult = true
		case domain.EntityLabValue, domain.EntityAbnormalValue:
			hasLabValue = true
		}
	}

	if hasTestResult {
		parts = append(parts, "病原学 诊断 治疗")
	}
	if hasLabValue {
		parts = append(parts, "实验室检查 异常指标 临床意义")
	}

	return strings.Join(parts, " ")
}

// logRetrieval records the retrieval outcome. Best effort: a log write
// failure is logged and swallowed.
func (s *RetrievalService) logRetrieval(ctx context.Context, input SelectInput, sel *Selection, elapsed time.Duration) {
	if s.logs == nil {
		return
	}

	rec := &domain.RetrievalLog{
		Query:         input.Symptoms,
		EnhancedQuery: sel.EnhancedQuery,
		EntityCount:   len(sel.ExtractedEntities),
		SourceCount:   len(sel.Sources),
		ChunkCount:    sel.TotalChunks,
		PatientAge:    input.PatientAge,
		DurationMS:    elapsed.Milliseconds(),
	}
	if len(sel.Sources) > 0 {
		rec.TopCategory = sel.Sources[0].Category
	}

	if err := s.logs.Insert(ctx, rec); err != nil {
		log.Printf("retrieval: failed to write retrieval log: %v", err)
	}
}
