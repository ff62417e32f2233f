package keyword

import (
	"regexp"
	"strings"
)

// tokenRe matches numeric literals, with an optional grade suffix, or letter runs
var tokenRe = regexp.MustCompile(`\d+(?:[.,]\d+)?(?:\s*/\s*20\b|\s*sur\s*20\b)?|\pL+`)

const minWordLength = 3

var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`
		le la les un une des du de et ou mais donc car ni or dans sur avec par
		pour sans sous vers chez entre jusqu depuis pendant avant après ce ces
		cette cet son sa ses mon ma mes ton ta tes notre nos votre vos leur
		leurs qui que quoi dont où il elle ils elles nous vous je tu on être
		avoir faire aller venir voir savoir pouvoir vouloir devoir falloir très
		plus moins aussi bien mieux beaucoup peu pas non oui si est sont quel
		quelle quels quelles`) {
		stopwords[w] = true
	}
}

// Tokenize lowercases text and returns its index terms in order. Grade
// literals such as "17 sur 20" are kept whole and written as "17/20".
func Tokenize(text string) []string {
	matches := tokenRe.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		if isDigit(m[0]) {
			tokens = append(tokens, canonicalNumber(m))
			continue
		}
		if len([]rune(m)) < minWordLength || stopwords[m] {
			continue
		}
		tokens = append(tokens, m)
	}
	return tokens
}

// IsStopword reports whether a lowercased word is ignored by the index
func IsStopword(w string) bool {
	return stopwords[w]
}

func canonicalNumber(m string) string {
	if i := strings.IndexAny(m, " /s\t"); i > 0 && strings.HasSuffix(m, "20") {
		return strings.TrimSpace(m[:i]) + "/20"
	}
	return m
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
