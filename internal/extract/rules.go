package extract

import (
	"regexp"

	"github.com/carelink-health/medkb/internal/domain"
)

// Rule is one pattern in the extraction rule table. The same table drives
// both the per-request entity extractor and the corpus term index builder so
// the two can never drift apart.
type Rule struct {
	Pattern    *regexp.Regexp
	Type       domain.EntityType
	Confidence float64
	// PairFormat renders the match as "group1: group2" instead of the whole
	// match, used for label/value pairs.
	PairFormat bool
}

// Confidence levels for the default rule families.
const (
	confidenceTest     = 0.9
	confidenceLabValue = 0.9
	confidenceAbnormal = 0.8
	confidenceVocab    = 0.7
)

// DefaultEntityRules returns the ordered rule families applied to symptom and
// document text at request time. Order matters: when the same text matches
// several families, the earlier (higher confidence) occurrence wins.
func DefaultEntityRules() []Rule {
	return []Rule{
		// Pathogen test results: "<pathogen> ... (阳性|弱阳性|阴性)".
		{
			Pattern:    regexp.MustCompile(`(?:支原体|衣原体|军团菌|流感病毒|新冠病毒|结核菌|百日咳)[^，。；\n]{0,20}?(?:弱阳性|阳性|阴性)`),
			Type:       domain.EntityTestResult,
			Confidence: confidenceTest,
		},
		// Antibody/marker tests: "<marker> ... (+|-|阳性|阴性)".
		{
			Pattern:    regexp.MustCompile(`(?:MP|CP|LP|IgM|IgG|IgA)[^，。；\n]{0,12}?(?:弱阳性|阳性|阴性|\+|-)`),
			Type:       domain.EntityTestResult,
			Confidence: confidenceTest,
		},
		// Lab values: known indicator vocabulary followed by a number.
		{
			Pattern:    regexp.MustCompile(`(?:白细胞|红细胞|血小板|血红蛋白|CRP|PCT|血沉|降钙素原|ALT|AST|肌酐|尿素氮|血糖|血脂)[^，。；\n]{0,10}?\d+(?:\.\d+)?`),
			Type:       domain.EntityLabValue,
			Confidence: confidenceLabValue,
		},
		// Generic abnormal-value pairs: "<label>: <number-or-arrow>".
		{
			Pattern:    regexp.MustCompile(`([\p{Han}A-Za-z][\p{Han}A-Za-z0-9]*)[:：]\s*([↑↓\d.]+)`),
			Type:       domain.EntityAbnormalValue,
			Confidence: confidenceAbnormal,
			PairFormat: true,
		},
	}
}

// DefaultTermRules returns the broadened rule families used when indexing
// corpus chunks: disease names, symptom vocabulary, lab/test indicators,
// treatment and drug names, and pathogen names. Confidence is nominal here;
// the index scores by overlap count, not rule confidence.
func DefaultTermRules() []Rule {
	return []Rule{
		// Disease names by common compound endings.
		{
			Pattern:    regexp.MustCompile(`[^，。；、\s]{1,12}(?:肺炎|肝炎|肾炎|胃炎|肠炎|脑炎|心肌炎|关节炎|综合征|综合症)`),
			Type:       domain.EntityDisease,
			Confidence: confidenceVocab,
		},
		// Disease names by single-character suffix.
		{
			Pattern:    regexp.MustCompile(`[\p{Han}]{1,9}(?:哮喘|感染|出血|栓塞|梗死|坏死)`),
			Type:       domain.EntityDisease,
			Confidence: confidenceVocab,
		},
		// Symptom vocabulary.
		{
			Pattern:    regexp.MustCompile(`(?:咳嗽|咳痰|发热|发烧|胸痛|腹痛|头痛|头晕|恶心|呕吐|腹泻|便秘|皮疹|瘙痒|出血|水肿|气促|喘息|乏力|盗汗|休克)`),
			Type:       domain.EntitySymptom,
			Confidence: confidenceVocab,
		},
		// Symptom compounds by suffix.
		{
			Pattern:    regexp.MustCompile(`[\p{Han}]{1,6}(?:痛|痒|胀|晕|咳|喘)`),
			Type:       domain.EntitySymptom,
			Confidence: confidenceVocab,
		},
		// Lab and test indicators.
		{
			Pattern:    regexp.MustCompile(`(?:白细胞|红细胞|血小板|血红蛋白|CRP|PCT|血沉|降钙素原|ALT|AST|肌酐|尿素氮|血糖|血脂|IgM|IgG|IgA|抗原|抗体|核酸|培养|药敏|弱阳性|阳性|阴性|升高|降低)`),
			Type:       domain.EntityLabValue,
			Confidence: confidenceVocab,
		},
		// Treatments and drug names.
		{
			Pattern:    regexp.MustCompile(`(?:抗生素|抗病毒|糖皮质激素|激素|免疫抑制剂|化疗|放疗|手术|输液|吸氧|雾化|青霉素|头孢[\p{Han}]{0,3}|阿奇霉素|红霉素|甲强龙|地塞米松|布地奈德|沙丁胺醇|孟鲁司特)`),
			Type:       domain.EntityTreatment,
			Confidence: confidenceVocab,
		},
		// Pathogens.
		{
			Pattern:    regexp.MustCompile(`(?:肺炎支原体|支原体|衣原体|军团菌|百日咳|结核|流感|新冠|腺病毒|呼吸道合胞病毒|肠道病毒|细菌|病毒|真菌|寄生虫)`),
			Type:       domain.EntityPathogen,
			Confidence: confidenceVocab,
		},
	}
}
