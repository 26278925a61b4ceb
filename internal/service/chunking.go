package service

import (
	"strings"
	"unicode"
)

// ChunkConfig controls how ingested documents are split into chunks.
type ChunkConfig struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

// DefaultChunkConfig provides defaults tuned for clinical guideline text,
// which is dense and mostly Chinese.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:  600,
		MinChars:  200,
		Overlap:   100,
		MaxChunks: 200,
	}
}

// section is a heading-delimited span of an ingested document.
type section struct {
	Title string
	Text  string
}

// splitSections splits a document body on markdown headings. Text before the
// first heading becomes a section with an empty title.
func splitSections(body string) []section {
	lines := strings.Split(body, "\n")

	var sections []section
	current := section{}
	var buf []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if text != "" {
			current.Text = text
			sections = append(sections, current)
		}
		buf = buf[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			current = section{Title: strings.TrimSpace(strings.TrimLeft(trimmed, "#"))}
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return sections
}

// sentenceEnd reports whether r terminates a sentence in Chinese or mixed
// clinical text. Whitespace counts so latin passages still split cleanly.
func sentenceEnd(r rune) bool {
	switch r {
	case '。', '；', '！', '？', '.', ';', '!', '?':
		return true
	}
	return unicode.IsSpace(r)
}

// chunkText splits a section body into overlapping chunks of at most MaxChars
// runes, cutting at sentence boundaries when one falls after MinChars.
// Guideline text carries no spaces between words, so cutting mid-rune-run is
// acceptable when no sentence end is in range.
func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	chunks := make([]string, 0, 8)
	start := 0
	for start < len(runes) {
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			break
		}

		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			cut := end
			minCut := start + cfg.MinChars
			if minCut > end {
				minCut = start
			}
			for i := end; i > minCut; i-- {
				if sentenceEnd(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		if end <= start {
			break
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}
