package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchResult_Score(t *testing.T) {
	fused := SearchResult{VectorScore: 0.8, KeywordScore: -2, HybridScore: 0}
	assert.Zero(t, fused.Score())

	keywordOnly := SearchResult{KeywordScore: -0.1, HybridScore: -0.1}
	assert.Equal(t, -0.1, keywordOnly.Score())
}
