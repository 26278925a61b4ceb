package index

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carelink-health/medkb/internal/domain"
	"github.com/carelink-health/medkb/internal/extract"
)

const (
	previewRunes = 200
	topTermCount = 20
	maxSuggestions = 10
)

// ChunkLister provides the active corpus chunks the index is built from.
type ChunkLister interface {
	ListActive(ctx context.Context) ([]*domain.KnowledgeChunk, error)
}

// Analyzer owns the inverted term index over the active corpus. It is a
// process-wide service object constructed once at startup and shared by
// request handlers; there is no global instance.
//
// Concurrency contract: Rebuild builds a complete new index and publishes it
// with one atomic pointer swap, so concurrent readers always see either the
// previous complete generation or the new one, never a partial build. Rebuild
// itself is serialized by a mutex.
type Analyzer struct {
	chunks    ChunkLister
	extractor *extract.TermExtractor

	current atomic.Pointer[termIndex]
	buildMu sync.Mutex
}

// NewAnalyzer creates an Analyzer. The index starts unbuilt; FindRelatedChunks
// returns ErrIndexNotBuilt until the first Rebuild completes.
func NewAnalyzer(chunks ChunkLister, extractor *extract.TermExtractor) *Analyzer {
	return &Analyzer{
		chunks:    chunks,
		extractor: extractor,
	}
}

// Rebuild scans every active chunk, extracts its terms, and swaps in the new
// index generation. Long-running relative to a query; concurrent reads keep
// hitting the previous generation until the swap.
func (a *Analyzer) Rebuild(ctx context.Context) (IndexStats, error) {
	a.buildMu.Lock()
	defer a.buildMu.Unlock()

	started := time.Now()
	chunks, err := a.chunks.ListActive(ctx)
	if err != nil {
		return IndexStats{}, err
	}

	idx := &termIndex{
		terms:         make(map[string][]ChunkRef),
		documentTerms: make(map[string]map[string]struct{}),
	}

	for _, chunk := range chunks {
		if chunk == nil || chunk.Text == "" {
			continue
		}
		terms := a.extractor.Terms(chunk.Text)
		if len(terms) == 0 {
			continue
		}

		ref := ChunkRef{
			ChunkID:       chunk.ID,
			Preview:       chunk.Preview(previewRunes),
			SectionTitle:  chunk.SectionTitle,
			DocumentTitle: chunk.DocumentTitle,
			Category:      chunk.Category,
			SourceFile:    chunk.SourceFile,
		}

		docKey := chunk.DocumentTitle + "/" + chunk.Category
		docTerms, ok := idx.documentTerms[docKey]
		if !ok {
			docTerms = make(map[string]struct{})
			idx.documentTerms[docKey] = docTerms
		}

		for term := range terms {
			idx.terms[term] = append(idx.terms[term], ref)
			docTerms[term] = struct{}{}
		}
	}

	idx.vocabulary = make([]string, 0, len(idx.terms))
	for term := range idx.terms {
		idx.vocabulary = append(idx.vocabulary, term)
	}
	sort.Strings(idx.vocabulary)

	idx.stats = IndexStats{
		TotalChunks:   len(chunks),
		UniqueTerms:   len(idx.terms),
		MedicalTerms:  len(idx.vocabulary),
		DocumentCount: len(idx.documentTerms),
		TopTerms:      idx.topTerms(topTermCount),
		BuiltAt:       started.UTC().Format(time.RFC3339),
	}

	a.current.Store(idx)
	log.Printf("term index rebuilt: %d chunks, %d terms in %v", len(chunks), len(idx.terms), time.Since(started))

	return idx.stats, nil
}

// Built reports whether at least one index generation has been published.
func (a *Analyzer) Built() bool {
	return a.current.Load() != nil
}

// FindRelatedChunks extracts terms from the query and document texts with the
// same extractor that built the index, scores each indexed chunk by the count
// of matching terms, and returns the top matches ordered by count descending
// with ties broken by chunk ID for determinism.
func (a *Analyzer) FindRelatedChunks(query string, documentTexts []string, topK int) ([]TermMatch, error) {
	idx := a.current.Load()
	if idx == nil {
		return nil, domain.ErrIndexNotBuilt
	}

	queryTerms := a.extractor.Terms(query)
	for _, text := range documentTexts {
		for term := range a.extractor.Terms(text) {
			queryTerms[term] = struct{}{}
		}
	}
	if len(queryTerms) == 0 {
		return nil, nil
	}

	matches := make(map[string]*TermMatch)
	for term := range queryTerms {
		for _, ref := range idx.terms[term] {
			match, ok := matches[ref.ChunkID]
			if !ok {
				match = &TermMatch{ChunkRef: ref}
				matches[ref.ChunkID] = match
			}
			match.MatchCount++
			match.MatchedTerms = append(match.MatchedTerms, term)
		}
	}

	results := make([]TermMatch, 0, len(matches))
	for _, match := range matches {
		sort.Strings(match.MatchedTerms)
		results = append(results, *match)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].MatchCount != results[j].MatchCount {
			return results[i].MatchCount > results[j].MatchCount
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Stats returns the statistics of the current index generation.
func (a *Analyzer) Stats() (IndexStats, error) {
	idx := a.current.Load()
	if idx == nil {
		return IndexStats{}, domain.ErrIndexNotBuilt
	}
	return idx.stats, nil
}

// Suggest returns up to 10 vocabulary terms containing the given fragment,
// for admin autocomplete.
func (a *Analyzer) Suggest(fragment string) []string {
	idx := a.current.Load()
	if idx == nil || fragment == "" {
		return nil
	}

	fragment = strings.ToLower(fragment)
	suggestions := make([]string, 0, maxSuggestions)
	for _, term := range idx.vocabulary {
		if strings.Contains(strings.ToLower(term), fragment) {
			suggestions = append(suggestions, term)
			if len(suggestions) >= maxSuggestions {
				break
			}
		}
	}
	return suggestions
}
