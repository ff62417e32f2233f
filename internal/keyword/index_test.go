package keyword

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Quel est le seuil de l'ENSA?", []string{"seuil", "ensa"}},
		{"Seuil 17/20 ou 16 sur 20", []string{"seuil", "17/20", "16/20"}},
		{"Frais: 45000 DH, 12,5 sur 20", []string{"frais", "45000", "12,5/20"}},
		{"Les écoles d'ingénieurs", []string{"écoles", "ingénieurs"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestIndex_EmptyIndex(t *testing.T) {
	x := NewIndex()
	assert.True(t, x.Empty())
	assert.Nil(t, x.Search("seuil", 5))

	var nilIndex *Index
	assert.True(t, nilIndex.Empty())
	assert.Zero(t, nilIndex.Terms())
}

func TestIndex_TFIDFWeights(t *testing.T) {
	x := NewIndex()
	x.Build([]string{
		"ensa commun",
		"commun autre",
		"commun truc",
	})

	w, ok := x.Weight(0, "ensa")
	require.True(t, ok)
	assert.InDelta(t, 0.5*math.Log(3.0/2.0), w, 1e-12)

	w, ok = x.Weight(0, "commun")
	require.True(t, ok)
	assert.InDelta(t, 0.5*math.Log(3.0/4.0), w, 1e-12)

	assert.ElementsMatch(t, []int{0, 1, 2}, x.Positions("commun"))
	assert.Equal(t, 3, x.Docs())
	assert.Equal(t, 6, x.Postings())
}

func TestIndex_RareTermOutscoresCommonTerm(t *testing.T) {
	x := NewIndex()
	x.Build([]string{
		"ensa commun",
		"commun autre",
		"commun truc",
	})

	rare := x.Search("ensa", 3)
	common := x.Search("commun", 3)

	require.Len(t, rare, 1)
	require.NotEmpty(t, common)
	var commonScore float64
	for _, h := range common {
		if h.Position == 0 {
			commonScore = h.Score
		}
	}
	assert.Greater(t, rare[0].Score, commonScore)
}

func TestIndex_SearchNormalizesByDistinctTerms(t *testing.T) {
	x := NewIndex()
	x.Build([]string{
		"seuil ensa seuil admission",
		"frais emsi casablanca",
		"campus sport culture",
		"bibliothèque laboratoire",
	})

	hits := x.Search("seuil seuil ensa inconnu", 10)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].Position)
	assert.Equal(t, []string{"seuil", "ensa"}, hits[0].Matched)

	wSeuil, _ := x.Weight(0, "seuil")
	wEnsa, _ := x.Weight(0, "ensa")
	assert.InDelta(t, (wSeuil+wEnsa)/3, hits[0].Score, 1e-12)
}

func TestIndex_RankingAndTopK(t *testing.T) {
	x := NewIndex()
	x.Build([]string{
		"frais frais frais inscription",
		"frais scolarité programme modules",
		"campus",
		"laboratoire",
		"stage",
	})

	hits := x.Search("frais", 10)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Position)
	assert.Equal(t, 1, hits[1].Position)

	assert.Len(t, x.Search("frais", 1), 1)
	assert.Nil(t, x.Search("frais", 0))
	assert.Nil(t, x.Search("le la les", 5))
}

func TestIndex_RebuildReplaces(t *testing.T) {
	x := NewIndex()
	x.Build([]string{"ancien contenu", "autre texte", "troisième"})
	x.Build([]string{"nouveau contenu", "autre chose", "encore"})

	assert.Empty(t, x.Search("ancien", 5))
	assert.NotEmpty(t, x.Search("nouveau", 5))
	_, ok := x.IDF("ancien")
	assert.False(t, ok)
}
