package service

import (
	"regexp"
	"strings"

	"github.com/carelink-health/medkb/internal/domain"
)

// tokenPattern matches runs of han, latin and numeric characters. Punctuation
// and whitespace separate tokens.
var tokenPattern = regexp.MustCompile(`[\p{Han}\p{Latin}\p{N}]+`)

var (
	// chunkTestVocab marks a chunk as test-result content.
	chunkTestVocab = []string{"阳性", "阴性", "检测", "抗体", "抗原"}
	// contextTestVocab marks the document context as mentioning test results.
	contextTestVocab = []string{"阳性", "阴性", "检测"}
)

// rerank boosts candidates against the supplied document context: a per-token
// bonus for vocabulary shared with the documents, and a flat bonus for
// test-result chunks when the documents mention test results. Without context
// the candidate order is returned unchanged. Boosts only add, so a candidate
// never scores below its search score.
func (s *RetrievalService) rerank(candidates []domain.ScoredChunk, documentTexts []string) []domain.ScoredChunk {
	if len(candidates) == 0 || len(documentTexts) == 0 {
		return candidates
	}

	contextTokens := make(map[string]struct{})
	contextHasTests := false
	for _, text := range documentTexts {
		lowered := strings.ToLower(text)
		for _, token := range tokenPattern.FindAllString(lowered, -1) {
			contextTokens[token] = struct{}{}
		}
		if !contextHasTests && containsAny(lowered, contextTestVocab) {
			contextHasTests = true
		}
	}

	for i := range candidates {
		lowered := strings.ToLower(candidates[i].Text)

		overlap := 0
		seen := make(map[string]struct{})
		for _, token := range tokenPattern.FindAllString(lowered, -1) {
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			if _, ok := contextTokens[token]; ok {
				overlap++
			}
		}
		candidates[i].SimilarityScore += s.cfg.OverlapBonus * float64(overlap)

		if contextHasTests && containsAny(lowered, chunkTestVocab) {
			candidates[i].SimilarityScore += s.cfg.TestResultBonus
		}
	}

	sortCandidates(candidates)
	return candidates
}

func containsAny(text string, vocab []string) bool {
	for _, v := range vocab {
		if strings.Contains(text, v) {
			return true
		}
	}
	return false
}
