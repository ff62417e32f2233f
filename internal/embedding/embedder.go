// Package embedding maps text to L2-normalized dense vectors.
package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrUnavailable is returned by embedders whose backend could not be reached
var ErrUnavailable = errors.New("embedding backend unavailable")

// Embedder encodes a batch of texts into fixed-dimension normalized vectors.
// Implementations are chosen at construction: a reachable backend or the
// Unavailable stub.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available() bool
}

// Unavailable is the embedder used when no backend could be reached
type Unavailable struct {
	Model string
}

func (u Unavailable) Embed(context.Context, []string) ([][]float32, error) {
	return nil, ErrUnavailable
}

func (u Unavailable) Dimensions() int   { return 0 }
func (u Unavailable) ModelName() string { return u.Model }
func (u Unavailable) Available() bool   { return false }

// Normalize scales v to unit L2 length in place. The zero vector is left as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Dot returns the inner product of two equal-length vectors
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
