package extract

import "strings"

// Token is a segmented word with its part-of-speech tag.
type Token struct {
	Word string
	POS  string
}

// Segmenter is the optional word segmentation capability. Implementations
// wrap an external NLP library; the index builder only needs Segment and must
// keep working when no segmenter is available.
type Segmenter interface {
	Segment(text string) []Token
}

// NoopSegmenter is the default pass-through segmenter. It produces no tokens,
// leaving term extraction to the pattern families alone.
type NoopSegmenter struct{}

func (NoopSegmenter) Segment(string) []Token { return nil }

var (
	medicalSuffixes = []string{
		"炎", "病", "症", "癌", "瘤", "毒", "菌", "虫", "药", "素", "剂",
	}
	medicalPrefixes = []string{
		"抗", "解", "止", "麻", "镇", "消", "免",
	}
)

// HasMedicalAffix reports whether a segmented word looks like a medical term
// by its surface form.
func HasMedicalAffix(word string) bool {
	for _, suffix := range medicalSuffixes {
		if strings.HasSuffix(word, suffix) {
			return true
		}
	}
	for _, prefix := range medicalPrefixes {
		if strings.HasPrefix(word, prefix) {
			return true
		}
	}
	return false
}
