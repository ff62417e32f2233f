package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedEmbedder keeps recently embedded texts in an expiring LRU. Repeated
// queries skip the backend round trip.
type CachedEmbedder struct {
	inner Embedder
	cache *expirable.LRU[string, []float32]
}

// NewCachedEmbedder wraps inner with a cache of at most size entries living ttl
func NewCachedEmbedder(inner Embedder, size int, ttl time.Duration) *CachedEmbedder {
	if size <= 0 {
		size = 512
	}
	return &CachedEmbedder{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// Embed serves cached vectors and embeds the misses in one call
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(vecs))
	}
	for j, v := range vecs {
		out[slots[j]] = v
		c.cache.Add(missing[j], v)
	}
	return out, nil
}

// Len returns the number of cached vectors
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

func (c *CachedEmbedder) Dimensions() int   { return c.inner.Dimensions() }
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }
func (c *CachedEmbedder) Available() bool   { return c.inner.Available() }
