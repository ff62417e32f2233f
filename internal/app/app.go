// Package app assembles the configuration, logger, embedding backend and
// knowledge base shared by the command binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"orienta-rag/internal/config"
	"orienta-rag/internal/database"
	"orienta-rag/internal/embedding"
	"orienta-rag/internal/logging"
	"orienta-rag/internal/rag"
)

// Overrides holds command-line values that take precedence over the config
// file. Empty fields keep the file value.
type Overrides struct {
	PDFDir      string
	IndexDir    string
	OllamaHost  string
	EmbedModel  string
	LLMModel    string
	PostgresDSN string
	LogLevel    string
}

func (o Overrides) apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Corpus.PDFDir, o.PDFDir)
	set(&cfg.Corpus.IndexDir, o.IndexDir)
	set(&cfg.Embedding.Host, o.OllamaHost)
	set(&cfg.LLM.Host, o.OllamaHost)
	set(&cfg.Embedding.Model, o.EmbedModel)
	set(&cfg.LLM.Model, o.LLMModel)
	set(&cfg.Postgres.DSN, o.PostgresDSN)
	set(&cfg.Log.Level, o.LogLevel)
}

// App is a wired knowledge base ready for Initialize
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Embedder embedding.Embedder
	Manager  *rag.Manager
	DB       *database.DB
}

// LoadConfig reads the config file and applies the overrides
func LoadConfig(path string, o Overrides) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	o.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// New builds the application. The Postgres mirror is attached only when
// mirror is set and a DSN is configured; a mirror that cannot connect is
// logged and skipped.
func New(ctx context.Context, configPath string, o Overrides, mirror bool) (*App, error) {
	cfg, err := LoadConfig(configPath, o)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	embedder := embedding.New(ctx, cfg.Embedding.Host, cfg.Embedding.Model, logger,
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithRetries(cfg.Embedding.MaxRetries),
		embedding.WithTimeout(cfg.Embedding.Timeout.Duration),
		embedding.WithConcurrency(cfg.Embedding.MaxConcurrent),
	)
	queries := embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL.Duration)

	a := &App{Config: cfg, Logger: logger, Embedder: embedder}
	opts := []rag.Option{rag.WithLogger(logger), rag.WithQueryEmbedder(queries)}

	if mirror && cfg.Postgres.DSN != "" {
		db, err := database.NewDB(ctx, cfg.Postgres.DSN)
		if err == nil {
			err = db.Initialize(ctx)
			if err != nil {
				db.Close()
			}
		}
		if err != nil {
			logger.Warn("postgres mirror disabled", zap.Error(err))
		} else {
			a.DB = db
			opts = append(opts, rag.WithMirror(db))
			logger.Info("postgres mirror enabled")
		}
	}

	a.Manager = rag.NewManager(cfg, embedder, opts...)
	return a, nil
}

// Close releases the database pool and flushes the logger
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	_ = a.Logger.Sync()
}
