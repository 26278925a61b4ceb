package service

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/carelink-health/medkb/internal/domain"
)

// hybridSearch runs the vector and term branches and merges their candidates.
// Each branch degrades to empty on its own failures; when both come back
// empty the caller produces an empty selection, not an error. The only error
// returned is a cancelled or expired context.
func (s *RetrievalService) hybridSearch(ctx context.Context, query string, documentTexts []string, minSimilarity float64) ([]domain.ScoredChunk, error) {
	vector := s.vectorSearch(ctx, query, minSimilarity)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	term := s.termSearch(query, documentTexts)

	return s.mergeCandidates(vector, term), nil
}

// vectorSearch embeds the query and scores it against every active chunk by
// cosine similarity. Chunks at or above minSimilarity become candidates; their
// retrieval counts are incremented best-effort.
func (s *RetrievalService) vectorSearch(ctx context.Context, query string, minSimilarity float64) []domain.ScoredChunk {
	if s.embedder == nil {
		return nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	queryEmbedding, err := s.embedder.GenerateEmbedding(embedCtx, query)
	if err != nil {
		log.Printf("retrieval: embedding unavailable, skipping vector branch: %v", err)
		return nil
	}

	chunks, err := s.chunks.ListActive(ctx)
	if err != nil {
		log.Printf("retrieval: listing active chunks failed, skipping vector branch: %v", err)
		return nil
	}

	var candidates []domain.ScoredChunk
	var hitIDs []string
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		score := cosineSimilarity(queryEmbedding, chunk.Embedding)
		if score < minSimilarity {
			continue
		}
		candidates = append(candidates, domain.ScoredChunk{
			ChunkID:         chunk.ID,
			Text:            chunk.Text,
			SectionTitle:    chunk.SectionTitle,
			DocumentTitle:   chunk.DocumentTitle,
			Category:        chunk.Category,
			SourceFile:      chunk.SourceFile,
			SimilarityScore: score,
			Source:          domain.SourceVector,
		})
		hitIDs = append(hitIDs, chunk.ID)
	}

	if len(hitIDs) > 0 {
		if err := s.chunks.IncrementRetrievalCount(ctx, hitIDs); err != nil {
			log.Printf("retrieval: failed to increment retrieval counts: %v", err)
		}
	}

	sortCandidates(candidates)
	if len(candidates) > s.cfg.CandidateLimit {
		candidates = candidates[:s.cfg.CandidateLimit]
	}
	return candidates
}

// termSearch queries the inverted index and normalizes match counts onto the
// similarity scale. An unbuilt index is a degradation, not a failure.
func (s *RetrievalService) termSearch(query string, documentTexts []string) []domain.ScoredChunk {
	if s.searcher == nil {
		return nil
	}

	matches, err := s.searcher.FindRelatedChunks(query, documentTexts, s.cfg.CandidateLimit)
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotBuilt) {
			log.Printf("retrieval: term index not built, skipping term branch")
		} else {
			log.Printf("retrieval: term search failed, skipping term branch: %v", err)
		}
		return nil
	}

	candidates := make([]domain.ScoredChunk, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, domain.ScoredChunk{
			ChunkID:         m.ChunkID,
			Text:            m.Preview,
			SectionTitle:    m.SectionTitle,
			DocumentTitle:   m.DocumentTitle,
			Category:        m.Category,
			SourceFile:      m.SourceFile,
			SimilarityScore: s.cfg.TermMatchBase + s.cfg.TermMatchStep*float64(m.MatchCount),
			Source:          domain.SourceTerm,
			MatchedTerms:    m.MatchedTerms,
		})
	}
	return candidates
}

// mergeCandidates combines the two branches, deduplicating by chunk ID. The
// vector score wins on conflict; matched terms from the term branch are kept
// on the surviving candidate.
func (s *RetrievalService) mergeCandidates(vector, term []domain.ScoredChunk) []domain.ScoredChunk {
	byID := make(map[string]int, len(vector))
	merged := make([]domain.ScoredChunk, 0, len(vector)+len(term))

	for _, c := range vector {
		byID[c.ChunkID] = len(merged)
		merged = append(merged, c)
	}
	for _, c := range term {
		if i, ok := byID[c.ChunkID]; ok {
			if len(merged[i].MatchedTerms) == 0 {
				merged[i].MatchedTerms = c.MatchedTerms
			}
			continue
		}
		byID[c.ChunkID] = len(merged)
		merged = append(merged, c)
	}

	sortCandidates(merged)
	if len(merged) > s.cfg.CandidateLimit {
		merged = merged[:s.cfg.CandidateLimit]
	}
	return merged
}

// sortCandidates orders by score descending with chunk ID as the
// deterministic tiebreak.
func sortCandidates(candidates []domain.ScoredChunk) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].SimilarityScore != candidates[j].SimilarityScore {
			return candidates[i].SimilarityScore > candidates[j].SimilarityScore
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
}
