// Package config loads the TOML configuration shared by the indexer and the
// QA binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full runtime configuration
type Config struct {
	Corpus    CorpusConfig    `toml:"corpus"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Log       LogConfig       `toml:"log"`
}

// CorpusConfig locates the source PDFs and the persisted index
type CorpusConfig struct {
	PDFDir        string `toml:"pdf_dir"`
	IndexDir      string `toml:"index_dir"`
	IngestWorkers int    `toml:"ingest_workers"`
}

// ChunkingConfig sizes the semantic chunks
type ChunkingConfig struct {
	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`
}

// RetrievalConfig tunes search and context assembly
type RetrievalConfig struct {
	TopK             int     `toml:"top_k"`
	MaxContextChunks int     `toml:"max_context_chunks"`
	ContextWindow    int     `toml:"context_window"`
	ScoreThreshold   float64 `toml:"score_threshold"`
	VectorWeight     float64 `toml:"vector_weight"`
	KeywordWeight    float64 `toml:"keyword_weight"`
}

// EmbeddingConfig selects and drives the embedding backend
type EmbeddingConfig struct {
	Host          string   `toml:"host"`
	Model         string   `toml:"model"`
	BatchSize     int      `toml:"batch_size"`
	MaxRetries    int      `toml:"max_retries"`
	Timeout       Duration `toml:"timeout"`
	MaxConcurrent int      `toml:"max_concurrent"`
	CacheSize     int      `toml:"cache_size"`
	CacheTTL      Duration `toml:"cache_ttl"`
}

// Duration is a time.Duration written as a Go duration string ("30s")
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LLMConfig selects the generation model used by ask
type LLMConfig struct {
	Host  string `toml:"host"`
	Model string `toml:"model"`
}

// PostgresConfig enables the optional index mirror
type PostgresConfig struct {
	DSN string `toml:"dsn"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Corpus: CorpusConfig{
			PDFDir:        "data/pdfs",
			IndexDir:      "data/index",
			IngestWorkers: 4,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    800,
			ChunkOverlap: 150,
		},
		Retrieval: RetrievalConfig{
			TopK:             5,
			MaxContextChunks: 5,
			ContextWindow:    3000,
			ScoreThreshold:   0.5,
			VectorWeight:     0.6,
			KeywordWeight:    0.4,
		},
		Embedding: EmbeddingConfig{
			Model:         "nomic-embed-text",
			BatchSize:     32,
			MaxRetries:    3,
			Timeout:       Duration{30 * time.Second},
			MaxConcurrent: 3,
			CacheSize:     512,
			CacheTTL:      Duration{30 * time.Minute},
		},
		LLM: LLMConfig{
			Model: "llama3.2",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with
func (c Config) Validate() error {
	var errs []error
	positive := []struct {
		name  string
		value int
	}{
		{"chunking.chunk_size", c.Chunking.ChunkSize},
		{"retrieval.top_k", c.Retrieval.TopK},
		{"retrieval.max_context_chunks", c.Retrieval.MaxContextChunks},
		{"retrieval.context_window", c.Retrieval.ContextWindow},
		{"embedding.batch_size", c.Embedding.BatchSize},
		{"embedding.max_concurrent", c.Embedding.MaxConcurrent},
		{"corpus.ingest_workers", c.Corpus.IngestWorkers},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.name, p.value))
		}
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		errs = append(errs, fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap))
	}
	if c.Embedding.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("embedding.max_retries must not be negative, got %d", c.Embedding.MaxRetries))
	}
	for name, w := range map[string]float64{
		"retrieval.vector_weight":  c.Retrieval.VectorWeight,
		"retrieval.keyword_weight": c.Retrieval.KeywordWeight,
	} {
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1], got %g", name, w))
		}
	}
	if c.Retrieval.ScoreThreshold < -1 || c.Retrieval.ScoreThreshold > 1 {
		errs = append(errs, fmt.Errorf("retrieval.score_threshold must be in [-1, 1], got %g", c.Retrieval.ScoreThreshold))
	}
	if c.Corpus.PDFDir == "" || c.Corpus.IndexDir == "" {
		errs = append(errs, errors.New("corpus.pdf_dir and corpus.index_dir are required"))
	}
	if c.Embedding.Model == "" {
		errs = append(errs, errors.New("embedding.model is required"))
	}
	return errors.Join(errs...)
}
