package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orienta-rag/internal/models"
)

func TestQueryOptions(t *testing.T) {
	defer func() { modeName, typeFilter = "auto", nil }()

	modeName, typeFilter = "keyword", []string{"seuils_notes"}
	opts, err := queryOptions()
	require.NoError(t, err)
	assert.Equal(t, models.ModeKeywordOnly, opts.Mode)
	assert.Equal(t, []models.ContentType{models.ContentGradeThreshold}, opts.ContentTypes)

	modeName, typeFilter = "fuzzy", nil
	_, err = queryOptions()
	assert.Error(t, err)

	modeName, typeFilter = "auto", []string{"tarifs"}
	_, err = queryOptions()
	assert.Error(t, err)
}

func TestFormatAnswer(t *testing.T) {
	grounded := formatAnswer(&models.Response{
		Answer:   "Le seuil est 17/20.",
		Grounded: true,
		Sources: []models.DocumentChunk{{
			Source:     "ensa.pdf",
			PageNumber: 2,
			Metadata:   map[string]any{"institution_name": "ENSA El Jadida"},
		}},
	})
	assert.Contains(t, grounded, "Le seuil est 17/20.")
	assert.Contains(t, grounded, "1. [ensa.pdf - ENSA El Jadida, Page: 2]")

	ungrounded := formatAnswer(&models.Response{Answer: "Je ne sais pas."})
	assert.Contains(t, ungrounded, "aucune source")
	assert.NotContains(t, ungrounded, "Sources:")
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, nil)
	assert.Equal(t, "No results found.\n", buf.String())

	buf.Reset()
	printResults(&buf, []models.SearchResult{{
		Chunk:           models.DocumentChunk{ChunkID: "ensa.pdf_page_1_semantic_1", Source: "ensa.pdf", PageNumber: 1, Content: "seuil\n17/20"},
		KeywordScore:    0.42,
		HybridScore:     0.42,
		MatchedKeywords: []string{"seuil"},
		ContentType:     models.ContentGradeThreshold,
	}})
	out := buf.String()
	assert.Contains(t, out, "[1] ensa.pdf_page_1_semantic_1 (0.420)")
	assert.Contains(t, out, "keywords: seuil")
	assert.Contains(t, out, "seuil 17/20")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b", snippet("a\n\n b", 10))
	assert.Equal(t, "abc...", snippet("abcdef", 3))
}
