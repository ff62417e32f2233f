package database

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orienta-rag/internal/models"
)

// testDB connects to the database named by ORIENTA_TEST_PG, skipping otherwise
func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("ORIENTA_TEST_PG")
	if dsn == "" {
		t.Skip("ORIENTA_TEST_PG not set")
	}
	db, err := NewDB(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Initialize(context.Background()))
	return db
}

func chunk(id, source, content string) models.DocumentChunk {
	return models.DocumentChunk{
		ChunkID:    id,
		Content:    content,
		Source:     source,
		PageNumber: 1,
		Metadata: map[string]any{
			"content_type":     "seuils_notes",
			"institution_name": "ENSA",
		},
	}
}

func TestDB_ReplaceAllAndQuery(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	chunks := []models.DocumentChunk{
		chunk("a", "ensa.pdf", "seuil 17/20"),
		chunk("b", "emsi.pdf", "frais 45000 DH"),
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}}
	require.NoError(t, db.ReplaceAll(ctx, chunks, vectors))

	results, err := db.QuerySimilar(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Chunk.ChunkID)
	assert.InDelta(t, 1.0, results[0].VectorScore, 1e-6)
	assert.Equal(t, models.ContentGradeThreshold, results[0].ContentType)

	results, err = db.QuerySimilar(ctx, []float32{1, 0, 0}, 2, []string{"emsi.pdf"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Chunk.ChunkID)

	vec, err := db.ChunkVector(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, vec)

	sources, err := db.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"emsi.pdf": 1, "ensa.pdf": 1}, sources)
}

func TestDB_ReplaceAllKeywordOnly(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.ReplaceAll(ctx, []models.DocumentChunk{chunk("a", "ensa.pdf", "seuil")}, nil))

	results, err := db.QuerySimilar(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	sources, err := db.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ensa.pdf": 1}, sources)
}

func TestDB_ReplaceAllRejectsMismatchedVectors(t *testing.T) {
	db := &DB{}
	err := db.ReplaceAll(context.Background(), []models.DocumentChunk{chunk("a", "x.pdf", "x")}, [][]float32{})
	assert.Error(t, err)
}
