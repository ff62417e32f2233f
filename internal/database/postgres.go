// Package database mirrors index generations into PostgreSQL with pgvector
// so other tools can query the corpus with SQL.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"orienta-rag/internal/models"
)

// DB represents the database connection
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, connStr string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Initialize enables pgvector and creates an empty chunks table when none exists
func (db *DB) Initialize(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, createTableSQL(0, "IF NOT EXISTS")); err != nil {
		return fmt.Errorf("failed to create document_chunks table: %w", err)
	}
	return nil
}

func createTableSQL(dim int, ifNotExists string) string {
	column := "vector"
	if dim > 0 {
		column = fmt.Sprintf("vector(%d)", dim)
	}
	return fmt.Sprintf(`
        CREATE TABLE %s document_chunks (
            chunk_id TEXT PRIMARY KEY,
            position INTEGER NOT NULL,
            content TEXT NOT NULL,
            source TEXT NOT NULL,
            page_number INTEGER NOT NULL,
            content_type TEXT NOT NULL,
            institution_type TEXT,
            institution_name TEXT,
            metadata JSONB,
            embedding %s
        )`, ifNotExists, column)
}

// ReplaceAll swaps the table contents for one generation in a single
// transaction. The table is recreated so the vector column matches the
// generation's dimension. vectors may be nil for a keyword-only generation.
func (db *DB) ReplaceAll(ctx context.Context, chunks []models.DocumentChunk, vectors [][]float32) error {
	if vectors != nil && len(vectors) != len(chunks) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS document_chunks`); err != nil {
		return fmt.Errorf("failed to drop document_chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, createTableSQL(dim, "")); err != nil {
		return fmt.Errorf("failed to create document_chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for i, c := range chunks {
		var embedding any
		if vectors != nil {
			embedding = pgvector.NewVector(vectors[i])
		}
		batch.Queue(`
            INSERT INTO document_chunks (
                chunk_id, position, content, source, page_number, content_type,
                institution_type, institution_name, metadata, embedding
            )
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector)
        `,
			c.ChunkID,
			i,
			c.Content,
			c.Source,
			c.PageNumber,
			string(c.ContentType()),
			c.MetaString("institution_type"),
			c.MetaString("institution_name"),
			c.Metadata,
			embedding)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if dim > 0 {
		_, err = tx.Exec(ctx, `
			CREATE INDEX document_chunks_embedding_idx ON document_chunks
			USING hnsw (embedding vector_cosine_ops)
		`)
		if err != nil {
			return fmt.Errorf("failed to create vector index: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `CREATE INDEX document_chunks_source_idx ON document_chunks (source)`); err != nil {
		return fmt.Errorf("failed to create source index: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit generation: %w", err)
	}
	return nil
}

// QuerySimilar finds the chunks closest to the query embedding. sources
// restricts the search when non-empty.
func (db *DB) QuerySimilar(ctx context.Context, embedding []float32, limit int, sources []string) ([]models.SearchResult, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT chunk_id, content, source, page_number, metadata,
		       1 - (embedding <=> $1::vector) AS score
		FROM document_chunks
		WHERE embedding IS NOT NULL
		  AND (coalesce(cardinality($3::text[]), 0) = 0 OR source = ANY($3))
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, pgvector.NewVector(embedding), limit, sources)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar chunks: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var (
			chunk models.DocumentChunk
			score float64
		)
		if err := rows.Scan(&chunk.ChunkID, &chunk.Content, &chunk.Source, &chunk.PageNumber, &chunk.Metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, models.SearchResult{
			Chunk:       chunk,
			VectorScore: score,
			HybridScore: score,
			ContentType: chunk.ContentType(),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// ChunkVector returns the stored embedding of one chunk
func (db *DB) ChunkVector(ctx context.Context, chunkID string) ([]float32, error) {
	var v pgvector.Vector
	err := db.Pool.QueryRow(ctx, `
		SELECT embedding FROM document_chunks WHERE chunk_id = $1 AND embedding IS NOT NULL
	`, chunkID).Scan(&v)
	if err != nil {
		return nil, fmt.Errorf("failed to load vector of %s: %w", chunkID, err)
	}
	return v.Slice(), nil
}

// Sources retrieves the distinct source documents with their chunk counts
func (db *DB) Sources(ctx context.Context) (map[string]int, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT source, count(*) FROM document_chunks GROUP BY source ORDER BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	sources := map[string]int{}
	for rows.Next() {
		var (
			source string
			count  int
		)
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources[source] = count
	}

	return sources, rows.Err()
}

// Close closes the database connection
func (db *DB) Close() {
	db.Pool.Close()
}
