package search

import (
	"regexp"
	"strings"

	"orienta-rag/internal/models"
)

const maxContextualBoost = 2.0

// contentBoosts multiplies the fused score by content type; unlisted types keep 1.0
var contentBoosts = map[models.ContentType]float64{
	models.ContentGradeThreshold: 1.5,
	models.ContentAdmission:      1.3,
	models.ContentProcedures:     1.3,
	models.ContentFees:           1.4,
	models.ContentCareers:        1.2,
	models.ContentPresentation:   0.9,
	models.ContentStudentLife:    0.8,
}

var (
	institutionTerms = wordPatterns("ensa", "emsi", "emi", "ensias", "encg", "est", "fst", "fsjes")
	filiereTerms     = wordPatterns("sciences math", "sm", "sciences physiques", "sp", "svt", "st", "se", "lsh")
	digitRe          = regexp.MustCompile(`\d`)
)

func wordPatterns(terms ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(t) + `\b`)
	}
	return out
}

// ContentBoost returns the multiplier for a content type
func ContentBoost(ct models.ContentType) float64 {
	if b, ok := contentBoosts[ct]; ok {
		return b
	}
	return 1.0
}

// ContextualBoost rewards query/chunk agreement on institution, track and
// numeric content. Each family counts once; the result is capped at 2.0.
func ContextualBoost(query, content string) float64 {
	q := strings.ToLower(query)
	c := strings.ToLower(content)

	boost := 1.0
	if matchBoth(institutionTerms, q, c) {
		boost += 0.2
	}
	if matchBoth(filiereTerms, q, c) {
		boost += 0.15
	}
	if digitRe.MatchString(q) && digitRe.MatchString(c) {
		boost += 0.1
	}
	return min(boost, maxContextualBoost)
}

func matchBoth(patterns []*regexp.Regexp, q, c string) bool {
	for _, re := range patterns {
		if re.MatchString(q) && re.MatchString(c) {
			return true
		}
	}
	return false
}

func contentBoostTable() map[string]float64 {
	out := make(map[string]float64, len(contentBoosts))
	for ct, b := range contentBoosts {
		out[string(ct)] = b
	}
	return out
}
