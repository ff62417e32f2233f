package testutil

import (
	"context"
	"hash/fnv"
	"sync/atomic"

	"orienta-rag/internal/embedding"
	"orienta-rag/internal/keyword"
)

// HashEmbedder is a deterministic bag-of-words embedder. Texts sharing
// tokens get a positive inner product, disjoint texts get zero.
type HashEmbedder struct {
	Dims  int
	Model string
	Calls atomic.Int32
}

// NewHashEmbedder returns a HashEmbedder of the given dimension
func NewHashEmbedder(dims int) *HashEmbedder {
	return &HashEmbedder{Dims: dims, Model: "hash-test"}
}

func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.Calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.Dims)
	tokens := keyword.Tokenize(text)
	if len(tokens) == 0 {
		v[0] = 1
		return v
	}
	for _, tok := range tokens {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		v[f.Sum32()%uint32(h.Dims)]++
	}
	return embedding.Normalize(v)
}

func (h *HashEmbedder) Dimensions() int   { return h.Dims }
func (h *HashEmbedder) ModelName() string { return h.Model }
func (h *HashEmbedder) Available() bool   { return true }
