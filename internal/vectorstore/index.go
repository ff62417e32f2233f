// Package vectorstore holds the dense vector index over document chunks and
// its on-disk form.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orienta-rag/internal/embedding"
	"orienta-rag/internal/models"
)

var (
	// ErrIncompatible is returned by Load when the persisted index was built
	// with a different model or dimension than the configured embedder.
	ErrIncompatible = errors.New("persisted index incompatible with embedder")
	// ErrNotFound is returned by Load when any of the three artifacts is missing
	ErrNotFound = errors.New("persisted index not found")
)

// Metadata describes one index generation
type Metadata struct {
	Generation string    `json:"generation"`
	Model      string    `json:"model"`
	Dimension  int       `json:"dimension"`
	ChunkCount int       `json:"chunk_count"`
	Sources    []string  `json:"sources"`
	CreatedAt  time.Time `json:"created_at"`
}

// Result is one chunk scored by inner product with the query vector
type Result struct {
	Position int
	Chunk    models.DocumentChunk
	Score    float64
}

// Index is a flat inner-product index. Vectors and chunks are parallel
// slices. An Index is filled once by Build or Load and then only read, so
// concurrent searches are safe; rebuilds go to a fresh instance.
type Index struct {
	embedder embedding.Embedder
	queries  embedding.Embedder
	vectors  [][]float32
	chunks   []models.DocumentChunk
	meta     Metadata
	logger   *zap.Logger
}

// Option configures an Index
type Option func(*Index)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(x *Index) {
		if l != nil {
			x.logger = l
		}
	}
}

// WithQueryEmbedder encodes queries with e instead of the build embedder.
// e must produce the same vectors, typically a cache in front of it.
func WithQueryEmbedder(e embedding.Embedder) Option {
	return func(x *Index) {
		if e != nil {
			x.queries = e
		}
	}
}

// NewIndex creates an empty index bound to embedder
func NewIndex(embedder embedding.Embedder, opts ...Option) *Index {
	if embedder == nil {
		embedder = embedding.Unavailable{}
	}
	x := &Index{
		embedder: embedder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.queries == nil {
		x.queries = embedder
	}
	return x
}

// Build encodes every chunk and replaces the index contents. With an
// unavailable embedder only the chunks are kept and the index reports
// itself unavailable.
func (x *Index) Build(ctx context.Context, chunks []models.DocumentChunk) error {
	x.meta = Metadata{
		Generation: uuid.NewString(),
		Model:      x.embedder.ModelName(),
		ChunkCount: len(chunks),
		Sources:    sourceList(chunks),
		CreatedAt:  time.Now().UTC(),
	}
	x.chunks = chunks
	x.vectors = nil

	if !x.embedder.Available() {
		x.logger.Warn("embedder unavailable, vector index left empty", zap.Int("chunks", len(chunks)))
		return nil
	}
	if len(chunks) == 0 {
		x.meta.Dimension = x.embedder.Dimensions()
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	start := time.Now()
	vecs, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}
	dim := len(vecs[0])
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}

	x.vectors = vecs
	x.meta.Dimension = dim
	x.logger.Info("vector index built",
		zap.Int("vectors", len(vecs)), zap.Int("dimension", dim),
		zap.String("model", x.meta.Model), zap.Duration("took", time.Since(start)))
	return nil
}

// Search encodes query and returns the topK chunks scoring at least
// threshold. Embedding failures are logged and yield no results.
func (x *Index) Search(ctx context.Context, query string, topK int, threshold float64) []Result {
	if !x.Available() || topK <= 0 {
		return nil
	}
	vecs, err := x.queries.Embed(ctx, []string{query})
	if err != nil || len(vecs) != 1 {
		x.logger.Warn("failed to embed query", zap.String("query", query), zap.Error(err))
		return nil
	}
	return x.SearchVector(vecs[0], topK, threshold, -1)
}

// SearchVector ranks stored vectors against vec. The position exclude is
// skipped; pass -1 to keep every position.
func (x *Index) SearchVector(vec []float32, topK int, threshold float64, exclude int) []Result {
	if len(x.vectors) == 0 || topK <= 0 || len(vec) != x.meta.Dimension {
		return nil
	}

	results := make([]Result, 0, len(x.vectors))
	for i, v := range x.vectors {
		if i == exclude {
			continue
		}
		score := float64(embedding.Dot(vec, v))
		if score < threshold {
			continue
		}
		results = append(results, Result{Position: i, Chunk: x.chunks[i], Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Vector returns the stored vector at position i
func (x *Index) Vector(i int) ([]float32, bool) {
	if i < 0 || i >= len(x.vectors) {
		return nil, false
	}
	return x.vectors[i], true
}

// Chunks returns the indexed chunks in vector order
func (x *Index) Chunks() []models.DocumentChunk {
	return x.chunks
}

// Len returns the number of indexed chunks
func (x *Index) Len() int {
	return len(x.chunks)
}

// Metadata returns the description of the current generation
func (x *Index) Metadata() Metadata {
	return x.meta
}

// Available reports whether vector search can serve queries
func (x *Index) Available() bool {
	return x.embedder.Available() && len(x.vectors) > 0
}

func sourceList(chunks []models.DocumentChunk) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range chunks {
		if !seen[c.Source] {
			seen[c.Source] = true
			out = append(out, c.Source)
		}
	}
	sort.Strings(out)
	return out
}
