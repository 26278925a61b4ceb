package extract

import (
	"sort"
	"unicode/utf8"

	"github.com/carelink-health/medkb/internal/domain"
)

// Terms shorter or longer than these bounds are noise for indexing purposes.
const (
	minTermRunes = 2
	maxTermRunes = 20
)

// Extractor pulls medical entities out of free text using the configured rule
// table. Extraction is pure: no I/O, no shared state, same output for the
// same input.
type Extractor struct {
	rules []Rule
}

// NewExtractor creates an Extractor with the default entity rule table.
func NewExtractor() *Extractor {
	return NewExtractorWithRules(DefaultEntityRules())
}

// NewExtractorWithRules creates an Extractor with an explicit rule table.
func NewExtractorWithRules(rules []Rule) *Extractor {
	return &Extractor{rules: rules}
}

// Extract applies the rule families in order and returns deduplicated
// entities sorted by descending confidence. When the same text is produced by
// more than one rule, the occurrence with the higher confidence is kept.
func (e *Extractor) Extract(text string) []domain.MedicalEntity {
	if text == "" {
		return nil
	}

	var entities []domain.MedicalEntity
	for _, rule := range e.rules {
		if rule.PairFormat {
			for _, m := range rule.Pattern.FindAllStringSubmatch(text, -1) {
				if len(m) < 3 {
					continue
				}
				entities = append(entities, domain.MedicalEntity{
					Text:       m[1] + ": " + m[2],
					Type:       rule.Type,
					Confidence: rule.Confidence,
				})
			}
			continue
		}
		for _, m := range rule.Pattern.FindAllString(text, -1) {
			entities = append(entities, domain.MedicalEntity{
				Text:       m,
				Type:       rule.Type,
				Confidence: rule.Confidence,
			})
		}
	}

	// Stable sort keeps rule-table order among equal confidences, so the
	// earlier family wins the dedupe below.
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Confidence > entities[j].Confidence
	})

	seen := make(map[string]struct{}, len(entities))
	unique := entities[:0]
	for _, ent := range entities {
		if _, ok := seen[ent.Text]; ok {
			continue
		}
		seen[ent.Text] = struct{}{}
		unique = append(unique, ent)
	}

	return unique
}

// TermExtractor extracts index terms from corpus chunks and queries. It runs
// the entity rule families plus the broadened term families, and optionally a
// segmenter whose tokens are kept when they carry a medical affix.
type TermExtractor struct {
	entityRules []Rule
	termRules   []Rule
	segmenter   Segmenter
}

// NewTermExtractor creates a TermExtractor with the default rule tables. A
// nil segmenter degrades to pattern-only extraction (reduced recall, not
// failure).
func NewTermExtractor(segmenter Segmenter) *TermExtractor {
	if segmenter == nil {
		segmenter = NoopSegmenter{}
	}
	return &TermExtractor{
		entityRules: DefaultEntityRules(),
		termRules:   DefaultTermRules(),
		segmenter:   segmenter,
	}
}

// Terms returns the set of index terms found in text.
func (t *TermExtractor) Terms(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	if text == "" {
		return terms
	}

	add := func(term string) {
		n := utf8.RuneCountInString(term)
		if n < minTermRunes || n > maxTermRunes {
			return
		}
		terms[term] = struct{}{}
	}

	for _, rule := range t.termRules {
		for _, m := range rule.Pattern.FindAllString(text, -1) {
			add(m)
		}
	}
	for _, rule := range t.entityRules {
		if rule.PairFormat {
			// Label/value pairs are request-time signals, not index terms.
			continue
		}
		for _, m := range rule.Pattern.FindAllString(text, -1) {
			add(m)
		}
	}

	for _, token := range t.segmenter.Segment(text) {
		if !keepPOS(token.POS) {
			continue
		}
		if HasMedicalAffix(token.Word) {
			add(token.Word)
		}
	}

	return terms
}

// keepPOS keeps nouns, verbs and adjectives, the tags jieba-style segmenters
// emit for content words.
func keepPOS(pos string) bool {
	switch pos {
	case "n", "nz", "v", "vn", "a", "an":
		return true
	}
	return false
}
