package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Chunking.ChunkSize)
	assert.Equal(t, 150, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 3000, cfg.Retrieval.ContextWindow)
	assert.Equal(t, 0.6, cfg.Retrieval.VectorWeight)
	assert.Equal(t, 0.4, cfg.Retrieval.KeywordWeight)
	assert.Equal(t, 0.5, cfg.Retrieval.ScoreThreshold)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orienta.toml")
	content := `
[corpus]
pdf_dir = "/srv/pdfs"

[chunking]
chunk_size = 600
chunk_overlap = 100

[retrieval]
top_k = 8
vector_weight = 0.7
keyword_weight = 0.3

[embedding]
model = "mxbai-embed-large"
timeout = "45s"

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/pdfs", cfg.Corpus.PDFDir)
	assert.Equal(t, "data/index", cfg.Corpus.IndexDir)
	assert.Equal(t, 600, cfg.Chunking.ChunkSize)
	assert.Equal(t, 100, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 0.7, cfg.Retrieval.VectorWeight)
	assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
	assert.Equal(t, 45*time.Second, cfg.Embedding.Timeout.Duration)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_RejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chunking\nchunk_size = "), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"overlap not below size", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }},
		{"negative overlap", func(c *Config) { c.Chunking.ChunkOverlap = -1 }},
		{"weight above one", func(c *Config) { c.Retrieval.VectorWeight = 1.5 }},
		{"negative weight", func(c *Config) { c.Retrieval.KeywordWeight = -0.1 }},
		{"threshold out of range", func(c *Config) { c.Retrieval.ScoreThreshold = 2 }},
		{"zero context window", func(c *Config) { c.Retrieval.ContextWindow = 0 }},
		{"no workers", func(c *Config) { c.Corpus.IngestWorkers = 0 }},
		{"negative retries", func(c *Config) { c.Embedding.MaxRetries = -1 }},
		{"no model", func(c *Config) { c.Embedding.Model = "" }},
		{"no index dir", func(c *Config) { c.Corpus.IndexDir = "" }},
	}
	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
