package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carelink-health/medkb/internal/domain"
)

// maxReasoningEntities bounds how many extracted entities the reasoning
// string names.
const maxReasoningEntities = 3

// selectTopSources groups ranked candidates by category and keeps the topK
// best categories. A category's relevance score is the mean over its full
// candidate set, computed before the per-source chunk cap is applied, so a
// category with many middling chunks is not mistaken for one with a few
// strong ones.
func (s *RetrievalService) selectTopSources(candidates []domain.ScoredChunk, topK int) []domain.KnowledgeSource {
	if len(candidates) == 0 {
		return nil
	}

	order := make([]string, 0)
	grouped := make(map[string][]domain.ScoredChunk)
	for _, c := range candidates {
		if _, ok := grouped[c.Category]; !ok {
			order = append(order, c.Category)
		}
		grouped[c.Category] = append(grouped[c.Category], c)
	}

	sources := make([]domain.KnowledgeSource, 0, len(order))
	for _, category := range order {
		chunks := grouped[category]

		var sum float64
		for _, c := range chunks {
			sum += c.SimilarityScore
		}
		mean := sum / float64(len(chunks))

		kept := chunks
		if len(kept) > s.cfg.MaxChunksPerSource {
			kept = kept[:s.cfg.MaxChunksPerSource]
		}

		sources = append(sources, domain.KnowledgeSource{
			Category:        category,
			RelevanceScore:  mean,
			Chunks:          kept,
			SelectionReason: fmt.Sprintf("hybrid score (avg: %.3f)", mean),
		})
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].RelevanceScore != sources[j].RelevanceScore {
			return sources[i].RelevanceScore > sources[j].RelevanceScore
		}
		return sources[i].Category < sources[j].Category
	})

	if topK > 0 && len(sources) > topK {
		sources = sources[:topK]
	}
	return sources
}

// generateReasoning renders the human-readable explanation attached to every
// selection, including the empty one.
func generateReasoning(sources []domain.KnowledgeSource, entities []domain.MedicalEntity) string {
	if len(sources) == 0 {
		return "No specific knowledge base matched. Using general medical knowledge."
	}

	entityDesc := "symptom analysis"
	if len(entities) > 0 {
		names := make([]string, 0, maxReasoningEntities)
		for _, ent := range entities {
			names = append(names, ent.Text)
			if len(names) == maxReasoningEntities {
				break
			}
		}
		entityDesc = strings.Join(names, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on %s, retrieved knowledge from:", entityDesc)
	for _, src := range sources {
		fmt.Fprintf(&b, "\n%s: %d chunks (score: %.3f)", src.Category, len(src.Chunks), src.RelevanceScore)
	}
	return b.String()
}
