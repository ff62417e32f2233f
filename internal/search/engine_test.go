package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orienta-rag/internal/keyword"
	"orienta-rag/internal/models"
	"orienta-rag/internal/vectorstore"
)

type fakeVectors struct {
	up      bool
	results []vectorstore.Result
	queries []string
}

func (f *fakeVectors) Search(_ context.Context, query string, topK int, threshold float64) []vectorstore.Result {
	f.queries = append(f.queries, query)
	var out []vectorstore.Result
	for _, r := range f.results {
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func (f *fakeVectors) Available() bool { return f.up }
func (f *fakeVectors) Len() int        { return len(f.results) }

func corpus() []models.DocumentChunk {
	docs := []struct {
		source, content string
		ct              models.ContentType
	}{
		{"ensa.pdf", "ENSA El Jadida seuil 17/20 admission", models.ContentGradeThreshold},
		{"ensa.pdf", "ENSA laboratoires recherche campus", models.ContentPresentation},
		{"emsi.pdf", "EMSI Casablanca frais 45000 DH", models.ContentFees},
		{"emsi.pdf", "EMSI stages entreprises partenaires", models.ContentCareers},
		{"autre.pdf", "bibliothèque sport culture", models.ContentStudentLife},
	}
	chunks := make([]models.DocumentChunk, len(docs))
	for i, d := range docs {
		chunks[i] = models.DocumentChunk{
			ChunkID:    d.source + "_chunk_" + string(rune('a'+i)),
			Content:    d.content,
			Source:     d.source,
			PageNumber: 1,
			Metadata:   map[string]any{"content_type": string(d.ct)},
		}
	}
	return chunks
}

func keywordIndex(chunks []models.DocumentChunk) *keyword.Index {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	x := keyword.NewIndex()
	x.Build(texts)
	return x
}

func TestClassifyQuery(t *testing.T) {
	tests := []struct {
		query string
		want  models.QueryType
	}{
		{"Quel est le seuil de l'ENSA?", models.QueryFactual},
		{"Pourquoi choisir l'ingénierie plutôt que la médecine?", models.QueryComparative},
		{"Comment candidater à l'EMSI ?", models.QueryProcedural},
		{"Qu'est-ce que le génie civil ?", models.QueryConceptual},
		{"Combien coûte une année à l'EMSI", models.QueryFactual},
		{"bonjour", models.QueryConceptual},
		{"", models.QueryConceptual},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyQuery(tt.query))
		})
	}
}

func TestSelectMode(t *testing.T) {
	tests := []struct {
		query string
		qt    models.QueryType
		want  models.SearchMode
	}{
		{"seuil ENSA", models.QueryFactual, models.ModeKeywordOnly},
		{"quel est le seuil minimum pour être admis à l'ENSA cette année", models.QueryFactual, models.ModeHybrid},
		{"ENSA ou EMSI", models.QueryComparative, models.ModeHybrid},
		{"comment faire", models.QueryProcedural, models.ModeHybrid},
		{"parle moi", models.QueryConceptual, models.ModeVectorOnly},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectMode(tt.query, tt.qt))
		})
	}
}

func TestResolveMode_Deterministic(t *testing.T) {
	chunks := corpus()
	e := NewEngine(&fakeVectors{up: true}, keywordIndex(chunks), chunks)

	for i := 0; i < 20; i++ {
		mode, qt := e.ResolveMode("Quel est le seuil de l'ENSA?", models.ModeAuto)
		assert.Equal(t, models.ModeKeywordOnly, mode)
		assert.Equal(t, models.QueryFactual, qt)

		mode, qt = e.ResolveMode("Pourquoi choisir l'ingénierie plutôt que la médecine?", models.ModeAuto)
		assert.Equal(t, models.ModeHybrid, mode)
		assert.Equal(t, models.QueryComparative, qt)
	}

	mode, _ := e.ResolveMode("Quel est le seuil de l'ENSA?", models.ModeVectorOnly)
	assert.Equal(t, models.ModeVectorOnly, mode)
}

func TestResolveMode_Degradation(t *testing.T) {
	chunks := corpus()

	noVectors := NewEngine(&fakeVectors{up: false}, keywordIndex(chunks), chunks)
	for _, m := range []models.SearchMode{models.ModeVectorOnly, models.ModeHybrid, models.ModeKeywordOnly} {
		got, _ := noVectors.ResolveMode("seuil", m)
		assert.Equal(t, models.ModeKeywordOnly, got, m)
	}

	noKeywords := NewEngine(&fakeVectors{up: true}, keyword.NewIndex(), chunks)
	for _, m := range []models.SearchMode{models.ModeVectorOnly, models.ModeHybrid, models.ModeKeywordOnly} {
		got, _ := noKeywords.ResolveMode("seuil", m)
		assert.Equal(t, models.ModeVectorOnly, got, m)
	}
}

func TestContextualBoost(t *testing.T) {
	full := ContextualBoost("ENSA SM seuil 17", "L'ENSA accepte les bacheliers SM avec 17/20")
	assert.InDelta(t, 1.45, full, 1e-9)
	assert.LessOrEqual(t, full, 2.0)

	assert.InDelta(t, 1.0, ContextualBoost("bonjour", "campus"), 1e-9)
	assert.InDelta(t, 1.1, ContextualBoost("frais 45000", "coût 50000 DH"), 1e-9)
	// abbreviations only count as whole words
	assert.InDelta(t, 1.0, ContextualBoost("ensa", "dispensateur"), 1e-9)

	many := ContextualBoost(
		"ensa emsi est fst sm sp svt st 1 2 3",
		"ensa emsi est fst sm sp svt st 1 2 3",
	)
	assert.LessOrEqual(t, many, 2.0)
}

func TestContentBoost(t *testing.T) {
	assert.Equal(t, 1.5, ContentBoost(models.ContentGradeThreshold))
	assert.Equal(t, 1.4, ContentBoost(models.ContentFees))
	assert.Equal(t, 0.8, ContentBoost(models.ContentStudentLife))
	assert.Equal(t, 1.0, ContentBoost(models.ContentContact))
	assert.Equal(t, 1.0, ContentBoost(models.ContentOther))
}

func TestHybridSearch_FusionNeverDrops(t *testing.T) {
	chunks := corpus()
	vectors := &fakeVectors{up: true, results: []vectorstore.Result{
		{Position: 3, Chunk: chunks[3], Score: 0.9},
	}}
	e := NewEngine(vectors, keywordIndex(chunks), chunks)

	results := e.HybridSearch(context.Background(), "seuil admission", 5)
	require.Len(t, results, 2)

	byID := map[string]models.SearchResult{}
	for _, r := range results {
		byID[r.Chunk.ChunkID] = r
	}

	vectorOnly, ok := byID[chunks[3].ChunkID]
	require.True(t, ok)
	assert.Zero(t, vectorOnly.KeywordScore)
	assert.InDelta(t, 0.9, vectorOnly.VectorScore, 1e-9)
	assert.Empty(t, vectorOnly.MatchedKeywords)
	assert.InDelta(t, 0.9*0.6*1.2, vectorOnly.HybridScore, 1e-9)
	assert.InDelta(t, 1.2, vectorOnly.RelevanceFactors["content_boost"], 1e-9)
	assert.InDelta(t, 1.0, vectorOnly.RelevanceFactors["contextual_boost"], 1e-9)
	assert.InDelta(t, 1.2, vectorOnly.RelevanceFactors["final_boost"], 1e-9)

	keywordOnly, ok := byID[chunks[0].ChunkID]
	require.True(t, ok)
	assert.Zero(t, keywordOnly.VectorScore)
	assert.Greater(t, keywordOnly.KeywordScore, 0.0)
	assert.ElementsMatch(t, []string{"seuil", "admission"}, keywordOnly.MatchedKeywords)
	assert.InDelta(t, keywordOnly.KeywordScore*0.4*1.5, keywordOnly.HybridScore, 1e-9)

	assert.GreaterOrEqual(t, results[0].HybridScore, results[1].HybridScore)
}

func TestHybridSearch_MergesSharedChunk(t *testing.T) {
	chunks := corpus()
	vectors := &fakeVectors{up: true, results: []vectorstore.Result{
		{Position: 2, Chunk: chunks[2], Score: 0.8},
	}}
	e := NewEngine(vectors, keywordIndex(chunks), chunks, WithWeights(0.5, 0.5))

	results := e.HybridSearch(context.Background(), "frais casablanca", 5)
	require.Len(t, results, 1)
	r := results[0]
	assert.InDelta(t, 0.8, r.VectorScore, 1e-9)
	assert.Greater(t, r.KeywordScore, 0.0)
	want := (0.8*0.5 + r.KeywordScore*0.5) * 1.4
	assert.InDelta(t, want, r.HybridScore, 1e-9)
}

func TestSearch_DegradedVectorFallsBackToKeywords(t *testing.T) {
	chunks := corpus()
	e := NewEngine(&fakeVectors{up: false}, keywordIndex(chunks), chunks)
	ctx := context.Background()

	assert.Empty(t, e.VectorSearch(ctx, "seuil admission", 5))

	for _, mode := range []models.SearchMode{models.ModeHybrid, models.ModeVectorOnly, models.ModeAuto} {
		results := e.Search(ctx, "seuil admission ENSA", 5, mode)
		require.NotEmpty(t, results, mode)
		for _, r := range results {
			assert.Equal(t, r.KeywordScore, r.HybridScore, mode)
			assert.Zero(t, r.VectorScore)
		}
	}

	direct := e.HybridSearch(ctx, "seuil admission", 5)
	require.NotEmpty(t, direct)
	for _, r := range direct {
		assert.Equal(t, r.KeywordScore, r.HybridScore)
	}
}

func TestSearch_EmptyKeywordIndexFallsBackToVectors(t *testing.T) {
	chunks := corpus()
	vectors := &fakeVectors{up: true, results: []vectorstore.Result{
		{Position: 1, Chunk: chunks[1], Score: 0.7},
	}}
	e := NewEngine(vectors, keyword.NewIndex(), chunks)

	results := e.Search(context.Background(), "seuil ENSA", 5, models.ModeKeywordOnly)
	require.Len(t, results, 1)
	assert.Equal(t, chunks[1].ChunkID, results[0].Chunk.ChunkID)
	assert.InDelta(t, 0.7, results[0].VectorScore, 1e-9)
}

func TestSearch_NothingAvailable(t *testing.T) {
	e := NewEngine(&fakeVectors{up: false}, keyword.NewIndex(), nil)
	for _, mode := range []models.SearchMode{models.ModeAuto, models.ModeHybrid, models.ModeVectorOnly, models.ModeKeywordOnly} {
		assert.Empty(t, e.Search(context.Background(), "seuil ENSA", 5, mode), mode)
	}

	var nilKeywords *keyword.Index
	e = NewEngine(&fakeVectors{up: false}, nilKeywords, nil)
	assert.Empty(t, e.Search(context.Background(), "seuil ENSA", 5, models.ModeAuto))
}

func TestSearch_KeywordRankingAndTopK(t *testing.T) {
	chunks := corpus()
	e := NewEngine(&fakeVectors{up: true}, keywordIndex(chunks), chunks)

	results := e.Search(context.Background(), "Quel est le seuil de l'ENSA?", 5, models.ModeAuto)
	require.NotEmpty(t, results)
	assert.Equal(t, chunks[0].ChunkID, results[0].Chunk.ChunkID)
	assert.Contains(t, results[0].MatchedKeywords, "seuil")
	assert.Equal(t, models.ContentGradeThreshold, results[0].ContentType)

	assert.Len(t, e.Search(context.Background(), "ENSA EMSI", 1, models.ModeKeywordOnly), 1)
	assert.Nil(t, e.Search(context.Background(), "ENSA", 0, models.ModeKeywordOnly))
}

func TestSearchFiltered(t *testing.T) {
	chunks := corpus()
	e := NewEngine(&fakeVectors{up: true}, keywordIndex(chunks), chunks)
	ctx := context.Background()

	results := e.SearchFiltered(ctx, "ENSA EMSI", 5, models.ModeKeywordOnly, Filter{Sources: []string{"emsi.pdf"}})
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "emsi.pdf", r.Chunk.Source)
	}

	results = e.SearchFiltered(ctx, "ENSA EMSI", 5, models.ModeKeywordOnly,
		Filter{ContentTypes: []models.ContentType{models.ContentGradeThreshold}})
	require.Len(t, results, 1)
	assert.Equal(t, chunks[0].ChunkID, results[0].Chunk.ChunkID)

	assert.Empty(t, e.SearchFiltered(ctx, "ENSA EMSI", 5, models.ModeKeywordOnly, Filter{MinScore: 10}))
}

func TestSearchFiltered_KeepsNegativeScores(t *testing.T) {
	chunks := []models.DocumentChunk{
		{ChunkID: "a_1", Content: "école ingénieurs Rabat", Source: "a.pdf", PageNumber: 1},
		{ChunkID: "a_2", Content: "école commerce Tanger", Source: "a.pdf", PageNumber: 2},
		{ChunkID: "a_3", Content: "école technologie Fès", Source: "a.pdf", PageNumber: 3},
	}
	e := NewEngine(&fakeVectors{up: true}, keywordIndex(chunks), chunks)
	ctx := context.Background()

	all := e.SearchFiltered(ctx, "école", 5, models.ModeKeywordOnly, Filter{})
	require.Len(t, all, 3)
	assert.Negative(t, all[0].Score())

	filtered := e.SearchFiltered(ctx, "école", 5, models.ModeKeywordOnly, Filter{Sources: []string{"a.pdf"}})
	assert.Len(t, filtered, 3)

	assert.Empty(t, e.SearchFiltered(ctx, "école", 5, models.ModeKeywordOnly, Filter{MinScore: -0.001}))
}

func TestStats(t *testing.T) {
	chunks := corpus()
	e := NewEngine(&fakeVectors{up: true}, keywordIndex(chunks), chunks, WithScoreThreshold(0.3))

	s := e.Stats()
	assert.True(t, s.VectorAvailable)
	assert.Equal(t, 5, s.TotalDocuments)
	assert.Positive(t, s.KeywordTerms)
	assert.Positive(t, s.KeywordPostings)
	assert.Equal(t, 0.6, s.VectorWeight)
	assert.Equal(t, 0.4, s.KeywordWeight)
	assert.Equal(t, 0.3, s.ScoreThreshold)
	assert.Equal(t, 1.5, s.ContentBoosts["seuils_notes"])
}
