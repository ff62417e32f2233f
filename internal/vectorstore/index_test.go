package vectorstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orienta-rag/internal/embedding"
	"orienta-rag/internal/models"
	"orienta-rag/internal/testutil"
)

func sampleChunks() []models.DocumentChunk {
	texts := []struct{ id, source, content string }{
		{"ensa.pdf_page_1_semantic_1", "ensa.pdf", "ENSA El Jadida seuil 17/20 admission ingénieur"},
		{"ensa.pdf_page_2_semantic_1", "ensa.pdf", "ENSA laboratoires recherche campus"},
		{"emsi.pdf_page_1_semantic_1", "emsi.pdf", "EMSI Casablanca frais 45000 DH scolarité"},
		{"emsi.pdf_page_2_semantic_1", "emsi.pdf", "EMSI stages entreprises partenaires"},
	}
	chunks := make([]models.DocumentChunk, len(texts))
	for i, tt := range texts {
		chunks[i] = models.DocumentChunk{
			ChunkID:    tt.id,
			Content:    tt.content,
			Source:     tt.source,
			PageNumber: 1,
			Metadata:   map[string]any{"content_type": "autre"},
		}
	}
	return chunks
}

func builtIndex(t *testing.T) *Index {
	t.Helper()
	x := NewIndex(testutil.NewHashEmbedder(64))
	require.NoError(t, x.Build(context.Background(), sampleChunks()))
	return x
}

func TestIndex_BuildAndSearch(t *testing.T) {
	x := builtIndex(t)
	assert.True(t, x.Available())
	assert.Equal(t, 4, x.Len())

	meta := x.Metadata()
	assert.Equal(t, "hash-test", meta.Model)
	assert.Equal(t, 64, meta.Dimension)
	assert.Equal(t, 4, meta.ChunkCount)
	assert.Equal(t, []string{"emsi.pdf", "ensa.pdf"}, meta.Sources)
	assert.NotEmpty(t, meta.Generation)

	results := x.Search(context.Background(), "EMSI Casablanca frais 45000 DH scolarité", 2, 0.0)
	require.NotEmpty(t, results)
	assert.Equal(t, "emsi.pdf_page_1_semantic_1", results[0].Chunk.ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.LessOrEqual(t, len(results), 2)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestIndex_ThresholdAndExclude(t *testing.T) {
	x := builtIndex(t)

	none := x.Search(context.Background(), "ENSA El Jadida seuil", 4, 1.01)
	assert.Empty(t, none)

	vec, ok := x.Vector(0)
	require.True(t, ok)
	results := x.SearchVector(vec, 4, -1, 0)
	for _, r := range results {
		assert.NotEqual(t, 0, r.Position)
	}

	_, ok = x.Vector(99)
	assert.False(t, ok)
}

func TestIndex_SaveLoadRoundTrip(t *testing.T) {
	x := builtIndex(t)
	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, x.Save(dir))
	assert.True(t, Exists(dir))

	loaded := NewIndex(testutil.NewHashEmbedder(64))
	require.NoError(t, loaded.Load(dir))

	assert.Equal(t, x.Metadata().Generation, loaded.Metadata().Generation)
	assert.Equal(t, x.Len(), loaded.Len())

	for _, q := range []string{"seuil ENSA", "frais EMSI", "stages entreprises", "laboratoires"} {
		before := x.Search(context.Background(), q, 4, -1)
		after := loaded.Search(context.Background(), q, 4, -1)
		require.Len(t, after, len(before), q)
		for i := range before {
			assert.Equal(t, before[i].Chunk.ChunkID, after[i].Chunk.ChunkID, q)
			assert.InDelta(t, before[i].Score, after[i].Score, 1e-6, q)
		}
	}
}

func TestIndex_SaveReplacesPreviousGeneration(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "index")

	first := builtIndex(t)
	require.NoError(t, first.Save(dir))
	second := builtIndex(t)
	require.NoError(t, second.Save(dir))

	loaded := NewIndex(testutil.NewHashEmbedder(64))
	require.NoError(t, loaded.Load(dir))
	assert.Equal(t, second.Metadata().Generation, loaded.Metadata().Generation)

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index", entries[0].Name())
}

func TestIndex_PartialArtifactsCountAsAbsent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, builtIndex(t).Save(dir))
	require.NoError(t, os.Remove(filepath.Join(dir, ChunksFile)))

	assert.False(t, Exists(dir))
	err := NewIndex(testutil.NewHashEmbedder(64)).Load(dir)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_LoadRejectsIncompatibleEmbedder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, builtIndex(t).Save(dir))

	otherModel := testutil.NewHashEmbedder(64)
	otherModel.Model = "another-model"
	assert.ErrorIs(t, NewIndex(otherModel).Load(dir), ErrIncompatible)

	otherDims := NewIndex(testutil.NewHashEmbedder(32))
	assert.ErrorIs(t, otherDims.Load(dir), ErrIncompatible)
	assert.Zero(t, otherDims.Len())
}

func TestIndex_LoadRejectsCorruptVectors(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, builtIndex(t).Save(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, VectorsFile), []byte("garbage"), 0o644))

	x := NewIndex(testutil.NewHashEmbedder(64))
	err := x.Load(dir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Zero(t, x.Len())
}

func TestIndex_LoadRejectsVectorHeaderMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, builtIndex(t).Save(dir))

	var blob bytes.Buffer
	blob.WriteString(vectorsMagic)
	require.NoError(t, binary.Write(&blob, binary.LittleEndian, []uint32{vectorsVersion, 4, 1 << 30}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, VectorsFile), blob.Bytes(), 0o644))

	x := NewIndex(testutil.NewHashEmbedder(64))
	err := x.Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata expects 4 x 64")
	assert.Zero(t, x.Len())
}

func TestIndex_UnavailableEmbedder(t *testing.T) {
	x := NewIndex(embedding.Unavailable{Model: "hash-test"})
	require.NoError(t, x.Build(context.Background(), sampleChunks()))

	assert.False(t, x.Available())
	assert.Equal(t, 4, x.Len())
	assert.Empty(t, x.Search(context.Background(), "seuil ENSA", 5, 0))

	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, x.Save(dir))

	// a keyword-only generation is rejected once a real backend is configured
	assert.ErrorIs(t, NewIndex(testutil.NewHashEmbedder(64)).Load(dir), ErrIncompatible)

	reloaded := NewIndex(embedding.Unavailable{Model: "hash-test"})
	require.NoError(t, reloaded.Load(dir))
	assert.Equal(t, 4, reloaded.Len())
}
