package index

import (
	"sort"
)

// ChunkRef is a lightweight reference from an index term to a chunk. The full
// chunk stays in the store; the index only carries what search results and
// previews need.
type ChunkRef struct {
	ChunkID       string
	Preview       string
	SectionTitle  string
	DocumentTitle string
	Category      string
	SourceFile    string
}

// TermMatch is a term-branch search hit: a chunk reference with the number of
// query terms it matched.
type TermMatch struct {
	ChunkRef
	MatchCount   int
	MatchedTerms []string
}

// IndexStats summarizes a completed index build.
type IndexStats struct {
	TotalChunks   int            `json:"total_chunks"`
	UniqueTerms   int            `json:"unique_terms"`
	MedicalTerms  int            `json:"medical_terms"`
	DocumentCount int            `json:"document_count"`
	TopTerms      []TermFrequency `json:"top_terms"`
	BuiltAt       string          `json:"built_at"`
}

// TermFrequency pairs a term with the number of chunks referencing it.
type TermFrequency struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// termIndex is one immutable generation of the inverted index. It is built in
// full, then published with a single pointer swap; readers never mutate it.
type termIndex struct {
	terms         map[string][]ChunkRef
	documentTerms map[string]map[string]struct{}
	vocabulary    []string
	stats         IndexStats
}

func (idx *termIndex) topTerms(n int) []TermFrequency {
	freqs := make([]TermFrequency, 0, len(idx.terms))
	for term, refs := range idx.terms {
		freqs = append(freqs, TermFrequency{Term: term, Count: len(refs)})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].Count != freqs[j].Count {
			return freqs[i].Count > freqs[j].Count
		}
		return freqs[i].Term < freqs[j].Term
	})
	if len(freqs) > n {
		freqs = freqs[:n]
	}
	return freqs
}
