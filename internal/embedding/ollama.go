package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"go.uber.org/zap"
)

const probeText = "orientation"

// OllamaEmbedder generates embeddings using the Ollama API
type OllamaEmbedder struct {
	Client        *api.Client
	Model         string
	MaxRetries    int
	Timeout       time.Duration
	MaxConcurrent int
	BatchSize     int

	dims   int
	logger *zap.Logger
}

// OllamaOption configures an OllamaEmbedder
type OllamaOption func(*OllamaEmbedder)

// WithRetries sets how many times a failed batch is retried
func WithRetries(n int) OllamaOption {
	return func(e *OllamaEmbedder) {
		if n >= 0 {
			e.MaxRetries = n
		}
	}
}

// WithTimeout bounds each embedding request
func WithTimeout(d time.Duration) OllamaOption {
	return func(e *OllamaEmbedder) {
		if d > 0 {
			e.Timeout = d
		}
	}
}

// WithConcurrency limits the number of in-flight batches
func WithConcurrency(n int) OllamaOption {
	return func(e *OllamaEmbedder) {
		if n > 0 {
			e.MaxConcurrent = n
		}
	}
}

// WithBatchSize sets how many texts go in one request
func WithBatchSize(n int) OllamaOption {
	return func(e *OllamaEmbedder) {
		if n > 0 {
			e.BatchSize = n
		}
	}
}

// WithOllamaLogger sets the logger
func WithOllamaLogger(l *zap.Logger) OllamaOption {
	return func(e *OllamaEmbedder) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewOllamaEmbedder creates a new Ollama embedder and probes the backend to
// learn the model dimension. Host falls back to OLLAMA_HOST.
func NewOllamaEmbedder(ctx context.Context, host string, model string, opts ...OllamaOption) (*OllamaEmbedder, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ollama host: %w", err)
		}
		hostURL = u
	}

	e := &OllamaEmbedder{
		Client:        api.NewClient(hostURL, http.DefaultClient),
		Model:         model,
		MaxRetries:    3,
		Timeout:       30 * time.Second,
		MaxConcurrent: 3,
		BatchSize:     32,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.Client.Heartbeat(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach ollama: %w", err)
	}
	vecs, err := e.createEmbeddings(ctx, []string{probeText})
	if err != nil {
		return nil, fmt.Errorf("failed to probe embedding model %s: %w", model, err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedding model %s returned no vector", model)
	}
	e.dims = len(vecs[0])

	e.logger.Info("embedding backend ready",
		zap.String("model", model), zap.String("host", hostURL.String()), zap.Int("dimensions", e.dims))
	return e, nil
}

// New returns a reachable Ollama embedder, or the Unavailable stub when the
// backend cannot be reached. The choice is made once, here.
func New(ctx context.Context, host, model string, logger *zap.Logger, opts ...OllamaOption) Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	e, err := NewOllamaEmbedder(ctx, host, model, append(opts, WithOllamaLogger(logger))...)
	if err != nil {
		logger.Warn("embedding backend unavailable, vector search disabled",
			zap.String("model", model), zap.Error(err))
		return Unavailable{Model: model}
	}
	return e
}

func (e *OllamaEmbedder) Dimensions() int   { return e.dims }
func (e *OllamaEmbedder) ModelName() string { return e.Model }
func (e *OllamaEmbedder) Available() bool   { return true }

// Embed encodes texts in parallel batches and returns normalized vectors in input order
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedWithProgress(ctx, texts, nil)
}

// EmbedWithProgress is Embed with a callback after each completed batch
func (e *OllamaEmbedder) EmbedWithProgress(ctx context.Context, texts []string,
	progressFunc func(processed, total int)) ([][]float32, error) {

	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.MaxConcurrent)

	var mu sync.Mutex
	processed := 0
	total := len(texts)

	errChan := make(chan error, (len(texts)+e.BatchSize-1)/e.BatchSize)

	for start := 0; start < len(texts); start += e.BatchSize {
		end := min(start+e.BatchSize, len(texts))

		wg.Add(1)
		semaphore <- struct{}{}

		go func(start, end int) {
			defer func() {
				wg.Done()
				<-semaphore
			}()

			vecs, err := e.embedWithRetry(ctx, texts[start:end])
			if err != nil {
				errChan <- fmt.Errorf("failed to embed texts %d-%d: %w", start, end-1, err)
				return
			}

			mu.Lock()
			copy(out[start:end], vecs)
			processed += end - start
			if progressFunc != nil {
				progressFunc(processed, total)
			}
			mu.Unlock()
		}(start, end)
	}

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return nil, err
	}
	return out, nil
}

func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var (
		vecs [][]float32
		err  error
	)
	for retries := 0; retries <= e.MaxRetries; retries++ {
		if retries > 0 {
			e.logger.Debug("retrying embedding batch", zap.Int("attempt", retries), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(retries) * time.Second):
			}
		}

		vecs, err = e.createEmbeddings(ctx, batch)
		if err == nil {
			return vecs, nil
		}
	}
	return nil, fmt.Errorf("failed to create embedding after %d retries: %w", e.MaxRetries, err)
}

func (e *OllamaEmbedder) createEmbeddings(ctx context.Context, batch []string) ([][]float32, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	resp, err := e.Client.Embed(ctxWithTimeout, &api.EmbedRequest{
		Model: e.Model,
		Input: batch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Embeddings) != len(batch) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Embeddings))
	}

	for _, v := range resp.Embeddings {
		if e.dims > 0 && len(v) != e.dims {
			return nil, fmt.Errorf("embedding dimension %d does not match model dimension %d", len(v), e.dims)
		}
		Normalize(v)
	}
	return resp.Embeddings, nil
}
