// Package search decides how a query is searched, runs the vector and
// keyword legs and fuses their scores into one ranked list.
package search

import (
	"context"
	"slices"
	"sort"

	"go.uber.org/zap"

	"orienta-rag/internal/keyword"
	"orienta-rag/internal/models"
	"orienta-rag/internal/vectorstore"
)

const (
	DefaultVectorWeight   = 0.6
	DefaultKeywordWeight  = 0.4
	DefaultScoreThreshold = 0.5
)

// VectorIndex is the dense leg. *vectorstore.Index implements it.
type VectorIndex interface {
	Search(ctx context.Context, query string, topK int, threshold float64) []vectorstore.Result
	Available() bool
	Len() int
}

// KeywordIndex is the lexical leg. *keyword.Index implements it.
type KeywordIndex interface {
	Search(query string, topK int) []keyword.Hit
	Empty() bool
	Terms() int
	Postings() int
}

// Filter narrows a result list. Zero values keep everything; a MinScore of 0
// applies no floor, so negative keyword scores survive a source or type filter.
type Filter struct {
	Sources      []string
	ContentTypes []models.ContentType
	MinScore     float64
}

func (f Filter) empty() bool {
	return len(f.Sources) == 0 && len(f.ContentTypes) == 0 && f.MinScore == 0
}

func (f Filter) keep(r models.SearchResult) bool {
	if len(f.Sources) > 0 && !slices.Contains(f.Sources, r.Chunk.Source) {
		return false
	}
	if len(f.ContentTypes) > 0 && !slices.Contains(f.ContentTypes, r.ContentType) {
		return false
	}
	return f.MinScore == 0 || r.Score() >= f.MinScore
}

// Stats describes the engine's indexes and scoring knobs
type Stats struct {
	VectorAvailable bool               `json:"vector_store_available"`
	TotalDocuments  int                `json:"total_documents"`
	KeywordTerms    int                `json:"keyword_index_terms"`
	KeywordPostings int                `json:"keyword_postings"`
	ContentBoosts   map[string]float64 `json:"boost_factors"`
	VectorWeight    float64            `json:"vector_weight"`
	KeywordWeight   float64            `json:"keyword_weight"`
	ScoreThreshold  float64            `json:"score_threshold"`
}

// Engine runs searches over one generation of indexes. It holds no mutable
// state after construction and is safe for concurrent use.
type Engine struct {
	vectors        VectorIndex
	keywords       KeywordIndex
	chunks         []models.DocumentChunk
	vectorWeight   float64
	keywordWeight  float64
	scoreThreshold float64
	logger         *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithWeights sets the fusion weights of the vector and keyword legs
func WithWeights(vector, keyword float64) Option {
	return func(e *Engine) {
		e.vectorWeight = vector
		e.keywordWeight = keyword
	}
}

// WithScoreThreshold sets the minimum inner product kept by the vector leg
func WithScoreThreshold(t float64) Option {
	return func(e *Engine) {
		e.scoreThreshold = t
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine. chunks are the documents the keyword index
// positions refer to. Either index may be nil.
func NewEngine(vectors VectorIndex, keywords KeywordIndex, chunks []models.DocumentChunk, opts ...Option) *Engine {
	e := &Engine{
		vectors:        vectors,
		keywords:       keywords,
		chunks:         chunks,
		vectorWeight:   DefaultVectorWeight,
		keywordWeight:  DefaultKeywordWeight,
		scoreThreshold: DefaultScoreThreshold,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// VectorAvailable reports whether the dense leg can serve queries
func (e *Engine) VectorAvailable() bool {
	return e.vectors != nil && e.vectors.Available()
}

// KeywordAvailable reports whether the lexical leg holds any terms
func (e *Engine) KeywordAvailable() bool {
	return e.keywords != nil && !e.keywords.Empty()
}

// ResolveMode turns a requested mode into the one that will run. Auto is
// resolved by classification, then unavailable legs are substituted: no
// vector leg means keyword-only, no keyword leg means vector-only. Both
// missing resolves to auto, which yields no results.
func (e *Engine) ResolveMode(query string, requested models.SearchMode) (models.SearchMode, models.QueryType) {
	qt := ClassifyQuery(query)
	mode := requested
	if mode == models.ModeAuto || mode == "" {
		mode = SelectMode(query, qt)
	}

	vec, kw := e.VectorAvailable(), e.KeywordAvailable()
	switch {
	case !vec && !kw:
		return models.ModeAuto, qt
	case !vec && mode != models.ModeKeywordOnly:
		return models.ModeKeywordOnly, qt
	case !kw && mode != models.ModeVectorOnly:
		return models.ModeVectorOnly, qt
	}
	return mode, qt
}

// Search classifies query, picks a mode when mode is auto and returns at most topK results
func (e *Engine) Search(ctx context.Context, query string, topK int, mode models.SearchMode) []models.SearchResult {
	return e.SearchFiltered(ctx, query, topK, mode, Filter{})
}

// SearchFiltered is Search with a result filter applied before truncation
func (e *Engine) SearchFiltered(ctx context.Context, query string, topK int, mode models.SearchMode, f Filter) []models.SearchResult {
	if topK <= 0 {
		return nil
	}
	resolved, qt := e.ResolveMode(query, mode)

	k := topK
	if !f.empty() {
		k = topK * 4
	}

	var results []models.SearchResult
	switch resolved {
	case models.ModeVectorOnly:
		results = e.VectorSearch(ctx, query, k)
	case models.ModeKeywordOnly:
		results = e.KeywordSearch(query, k)
	case models.ModeHybrid:
		results = e.HybridSearch(ctx, query, k)
	}

	if !f.empty() {
		kept := results[:0]
		for _, r := range results {
			if f.keep(r) {
				kept = append(kept, r)
			}
		}
		results = kept
	}
	if len(results) > topK {
		results = results[:topK]
	}

	e.logger.Debug("search",
		zap.String("query", query), zap.String("query_type", string(qt)),
		zap.String("requested_mode", string(mode)), zap.String("mode", string(resolved)),
		zap.Int("results", len(results)))
	return results
}

// VectorSearch returns the topK chunks by inner product. Empty when the dense leg is unavailable.
func (e *Engine) VectorSearch(ctx context.Context, query string, topK int) []models.SearchResult {
	if !e.VectorAvailable() {
		return nil
	}
	hits := e.vectors.Search(ctx, query, topK, e.scoreThreshold)
	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, models.SearchResult{
			Chunk:       h.Chunk,
			VectorScore: h.Score,
			HybridScore: h.Score,
			ContentType: h.Chunk.ContentType(),
		})
	}
	return results
}

// KeywordSearch returns the topK chunks by TF-IDF. Empty when the keyword index is empty.
func (e *Engine) KeywordSearch(query string, topK int) []models.SearchResult {
	if !e.KeywordAvailable() {
		return nil
	}
	hits := e.keywords.Search(query, topK)
	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(e.chunks) {
			continue
		}
		chunk := e.chunks[h.Position]
		results = append(results, models.SearchResult{
			Chunk:           chunk,
			KeywordScore:    h.Score,
			HybridScore:     h.Score,
			MatchedKeywords: h.Matched,
			ContentType:     chunk.ContentType(),
		})
	}
	return results
}

// HybridSearch runs both legs for 2*topK candidates, fuses every candidate
// seen on either side and applies the content and contextual boosts. With
// the dense leg down the result is the keyword ranking unboosted.
func (e *Engine) HybridSearch(ctx context.Context, query string, topK int) []models.SearchResult {
	if !e.VectorAvailable() {
		return e.KeywordSearch(query, topK)
	}
	if !e.KeywordAvailable() {
		return e.VectorSearch(ctx, query, topK)
	}

	vector := e.VectorSearch(ctx, query, topK*2)
	keywords := e.KeywordSearch(query, topK*2)
	results := e.fuse(vector, keywords)

	for i := range results {
		r := &results[i]
		content := ContentBoost(r.ContentType)
		contextual := ContextualBoost(query, r.Chunk.Content)
		r.HybridScore *= content * contextual
		r.RelevanceFactors = map[string]float64{
			"content_boost":    content,
			"contextual_boost": contextual,
			"final_boost":      content * contextual,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].HybridScore > results[j].HybridScore
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// fuse merges both legs by chunk id. Vector candidates keep their order,
// keyword-only candidates follow in theirs.
func (e *Engine) fuse(vector, keywords []models.SearchResult) []models.SearchResult {
	byID := make(map[string]int, len(vector)+len(keywords))
	merged := make([]models.SearchResult, 0, len(vector)+len(keywords))

	for _, v := range vector {
		byID[v.Chunk.ChunkID] = len(merged)
		merged = append(merged, models.SearchResult{
			Chunk:       v.Chunk,
			VectorScore: v.VectorScore,
			ContentType: v.ContentType,
		})
	}
	for _, k := range keywords {
		if i, ok := byID[k.Chunk.ChunkID]; ok {
			merged[i].KeywordScore = k.KeywordScore
			merged[i].MatchedKeywords = k.MatchedKeywords
			continue
		}
		byID[k.Chunk.ChunkID] = len(merged)
		merged = append(merged, models.SearchResult{
			Chunk:           k.Chunk,
			KeywordScore:    k.KeywordScore,
			MatchedKeywords: k.MatchedKeywords,
			ContentType:     k.ContentType,
		})
	}

	for i := range merged {
		merged[i].HybridScore = merged[i].VectorScore*e.vectorWeight + merged[i].KeywordScore*e.keywordWeight
	}
	return merged
}

// Stats reports index sizes and scoring configuration
func (e *Engine) Stats() Stats {
	s := Stats{
		VectorAvailable: e.VectorAvailable(),
		TotalDocuments:  len(e.chunks),
		ContentBoosts:   contentBoostTable(),
		VectorWeight:    e.vectorWeight,
		KeywordWeight:   e.keywordWeight,
		ScoreThreshold:  e.scoreThreshold,
	}
	if e.keywords != nil {
		s.KeywordTerms = e.keywords.Terms()
		s.KeywordPostings = e.keywords.Postings()
	}
	return s
}
