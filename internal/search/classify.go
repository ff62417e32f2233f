package search

import (
	"regexp"
	"strings"

	"orienta-rag/internal/models"
)

// factualWordLimit is the word count above which a factual query goes hybrid
const factualWordLimit = 8

// queryPatterns are scored in this order; the first family reaching the top
// score wins a tie.
var queryPatterns = []struct {
	Type     models.QueryType
	Patterns []*regexp.Regexp
}{
	{models.QueryFactual, compile(
		`(?:seuil|note|moyenne|minimum).*?(\d+)`,
		`combien.*?(?:coûte|frais|prix)`,
		`quand.*?(?:inscription|candidature)`,
		`date|deadline|échéance`,
		`(\d+)\s*(?:/20|sur 20)`,
		`(?:frais|coût|tarif).*?(\d+)`,
		`capacité.*?(\d+)|durée.*?(\d+).*?(?:ans?|années?)`,
		`\bseuils?\b|\bfrais\b|\btarifs?\b|\bprix\b`,
	)},
	{models.QueryConceptual, compile(
		`qu[e']?est[- ]ce que`,
		`expliquez?.*?moi`,
		`définition|signification`,
		`pourquoi.*?(?:choisir|important)`,
		`avantages?|inconvénients?`,
		`différence.*?entre`,
	)},
	{models.QueryProcedural, compile(
		`comment.*?(?:faire|procéder|candidater|inscrire)`,
		`étapes?.*?(?:inscription|candidature)`,
		`procédure|démarche|processus`,
		`quelles.*?sont.*?étapes?`,
		`je dois.*?(?:faire|préparer)`,
	)},
	{models.QueryComparative, compile(
		`(?:mieux|meilleur).*?(?:entre|que)`,
		`compar(?:er|aison)`,
		`différence.*?entre`,
		`\b(?:ensa|emsi|est|encg|emi)\b.*?\b(?:vs|versus|ou)\b`,
		`choisir.*?(?:entre|plutôt|ou\b)`,
		`lequel.*?(?:choisir|mieux)`,
		`plutôt\s+que`,
		`\bvs\b|\bversus\b`,
	)},
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// QueryScores returns the normalized pattern-hit score of each query family
func QueryScores(query string) map[models.QueryType]float64 {
	q := strings.ToLower(query)
	scores := make(map[models.QueryType]float64, len(queryPatterns))
	for _, family := range queryPatterns {
		hits := 0
		for _, re := range family.Patterns {
			hits += len(re.FindAllStringIndex(q, -1))
		}
		scores[family.Type] = float64(hits) / float64(len(family.Patterns))
	}
	return scores
}

// ClassifyQuery returns the family with the highest normalized score.
// A query matching nothing is conceptual.
func ClassifyQuery(query string) models.QueryType {
	scores := QueryScores(query)
	best := models.QueryConceptual
	bestScore := 0.0
	for _, family := range queryPatterns {
		if s := scores[family.Type]; s > bestScore {
			best, bestScore = family.Type, s
		}
	}
	return best
}

// SelectMode maps a query type to the search mode used under auto
func SelectMode(query string, queryType models.QueryType) models.SearchMode {
	switch queryType {
	case models.QueryFactual:
		if len(strings.Fields(query)) > factualWordLimit {
			return models.ModeHybrid
		}
		return models.ModeKeywordOnly
	case models.QueryComparative, models.QueryProcedural:
		return models.ModeHybrid
	default:
		return models.ModeVectorOnly
	}
}
