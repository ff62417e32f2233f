// Package keyword implements the inverted TF-IDF index used for lexical retrieval.
package keyword

import (
	"math"
	"sort"
)

// Posting is one chunk position holding a term and its TF-IDF weight there
type Posting struct {
	Position int
	Weight   float64
}

// Hit is one ranked keyword match
type Hit struct {
	Position int
	Score    float64
	Matched  []string
}

// Index maps terms to the chunk positions that contain them. It is built in
// one pass and read-only afterwards, so concurrent searches are safe.
type Index struct {
	postings map[string][]Posting
	docFreq  map[string]int
	docs     int
}

// NewIndex returns an empty index
func NewIndex() *Index {
	return &Index{
		postings: map[string][]Posting{},
		docFreq:  map[string]int{},
	}
}

// Build replaces the index with one over docs. Position i refers to docs[i].
// Weight = tf * ln(N / (df + 1)) with tf = count / token count of the doc.
func (x *Index) Build(docs []string) {
	x.postings = map[string][]Posting{}
	x.docFreq = map[string]int{}
	x.docs = len(docs)

	counts := make([]map[string]int, len(docs))
	lengths := make([]int, len(docs))
	for i, doc := range docs {
		tokens := Tokenize(doc)
		lengths[i] = len(tokens)
		c := make(map[string]int, len(tokens))
		for _, t := range tokens {
			c[t]++
		}
		counts[i] = c
		for t := range c {
			x.docFreq[t]++
		}
	}

	n := float64(x.docs)
	for i, c := range counts {
		for term, count := range c {
			tf := float64(count) / float64(lengths[i])
			idf := math.Log(n / float64(x.docFreq[term]+1))
			x.postings[term] = append(x.postings[term], Posting{Position: i, Weight: tf * idf})
		}
	}
}

// Search scores every chunk holding at least one query term. A chunk's score
// is the sum of its weights for the matched terms divided by the number of
// distinct query terms. Results are ordered by score, then position.
func (x *Index) Search(query string, topK int) []Hit {
	if x.Empty() || topK <= 0 {
		return nil
	}
	terms := distinct(Tokenize(query))
	if len(terms) == 0 {
		return nil
	}

	byPos := map[int]*Hit{}
	for _, term := range terms {
		for _, p := range x.postings[term] {
			h, ok := byPos[p.Position]
			if !ok {
				h = &Hit{Position: p.Position}
				byPos[p.Position] = h
			}
			h.Score += p.Weight
			h.Matched = append(h.Matched, term)
		}
	}

	hits := make([]Hit, 0, len(byPos))
	norm := float64(len(terms))
	for _, h := range byPos {
		h.Score /= norm
		hits = append(hits, *h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// Weight returns the stored weight of term in the chunk at position
func (x *Index) Weight(position int, term string) (float64, bool) {
	for _, p := range x.postings[term] {
		if p.Position == position {
			return p.Weight, true
		}
	}
	return 0, false
}

// Positions returns the chunk positions that contain term
func (x *Index) Positions(term string) []int {
	ps := x.postings[term]
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.Position
	}
	return out
}

// IDF returns ln(N / (df + 1)) for term, and false when the term is not indexed
func (x *Index) IDF(term string) (float64, bool) {
	df, ok := x.docFreq[term]
	if !ok {
		return 0, false
	}
	return math.Log(float64(x.docs) / float64(df+1)), true
}

// Empty reports whether the index was never built or holds no terms
func (x *Index) Empty() bool {
	return x == nil || len(x.postings) == 0
}

// Terms returns the number of distinct indexed terms
func (x *Index) Terms() int {
	if x == nil {
		return 0
	}
	return len(x.postings)
}

// Docs returns the number of chunks the index was built over
func (x *Index) Docs() int {
	if x == nil {
		return 0
	}
	return x.docs
}

// Postings returns the number of (chunk, term) weights held
func (x *Index) Postings() int {
	if x == nil {
		return 0
	}
	total := 0
	for _, ps := range x.postings {
		total += len(ps)
	}
	return total
}

func distinct(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
