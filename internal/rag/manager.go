// Package rag owns the knowledge base lifecycle: it ingests the PDF corpus,
// keeps one generation of vector and keyword indexes live and answers
// retrieval requests against it.
package rag

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"orienta-rag/internal/config"
	"orienta-rag/internal/embedding"
	"orienta-rag/internal/keyword"
	"orienta-rag/internal/models"
	"orienta-rag/internal/processor"
	"orienta-rag/internal/search"
	"orienta-rag/internal/vectorstore"
)

var (
	// ErrUnavailable means no index generation can serve the request
	ErrUnavailable = errors.New("knowledge base unavailable")
	// ErrNoSources means the corpus directory holds no usable PDF text
	ErrNoSources = errors.New("no source documents found")
	// ErrChunkNotFound is returned for an unknown chunk id
	ErrChunkNotFound = errors.New("chunk not found")
)

// Mirror receives every successfully rebuilt generation. vectors is nil
// when the generation has no dense vectors.
type Mirror interface {
	ReplaceAll(ctx context.Context, chunks []models.DocumentChunk, vectors [][]float32) error
}

// generation is one immutable set of indexes. It is replaced, never mutated.
type generation struct {
	vectors  *vectorstore.Index
	keywords *keyword.Index
	engine   *search.Engine
	byID     map[string]int
}

// Manager coordinates ingestion, persistence and retrieval
type Manager struct {
	cfg       config.Config
	embedder  embedding.Embedder
	queries   embedding.Embedder
	extractor processor.Extractor
	chunker   *processor.SemanticChunker
	mirror    Mirror
	logger    *zap.Logger

	buildMu sync.Mutex
	mu      sync.RWMutex
	current *generation
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithExtractor replaces the PDF extractor
func WithExtractor(e processor.Extractor) Option {
	return func(m *Manager) {
		if e != nil {
			m.extractor = e
		}
	}
}

// WithMirror registers a mirror fed after each rebuild
func WithMirror(mirror Mirror) Option {
	return func(m *Manager) {
		m.mirror = mirror
	}
}

// WithQueryEmbedder sets the embedder used for query vectors, typically a
// cache in front of the build embedder
func WithQueryEmbedder(e embedding.Embedder) Option {
	return func(m *Manager) {
		if e != nil {
			m.queries = e
		}
	}
}

// NewManager creates a manager with no live generation. Call Initialize
// before querying.
func NewManager(cfg config.Config, embedder embedding.Embedder, opts ...Option) *Manager {
	if embedder == nil {
		embedder = embedding.Unavailable{Model: cfg.Embedding.Model}
	}
	m := &Manager{
		cfg:      cfg,
		embedder: embedder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.queries == nil {
		m.queries = embedder
	}
	if m.extractor == nil {
		m.extractor = processor.NewPDFExtractor(m.logger)
	}
	m.chunker = processor.NewSemanticChunker(
		processor.WithMaxChunkSize(cfg.Chunking.ChunkSize),
		processor.WithOverlap(cfg.Chunking.ChunkOverlap),
		processor.WithLogger(m.logger),
	)
	return m
}

// Initialize loads the persisted generation unless force is set, and
// rebuilds from the corpus when loading is not possible. On failure the
// previous generation stays live, in memory and on disk.
func (m *Manager) Initialize(ctx context.Context, force bool) error {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	if !force {
		idx := m.newIndex()
		err := idx.Load(m.cfg.Corpus.IndexDir)
		switch {
		case err == nil && idx.Len() > 0:
			m.install(idx)
			m.logger.Info("knowledge base loaded",
				zap.String("generation", idx.Metadata().Generation), zap.Int("chunks", idx.Len()))
			return nil
		case err == nil:
			m.logger.Warn("persisted index is empty, rebuilding")
		case errors.Is(err, vectorstore.ErrNotFound):
			m.logger.Info("no persisted index, building", zap.String("dir", m.cfg.Corpus.IndexDir))
		case errors.Is(err, vectorstore.ErrIncompatible):
			m.logger.Warn("persisted index incompatible, rebuilding", zap.Error(err))
		default:
			m.logger.Warn("persisted index unreadable, rebuilding", zap.Error(err))
		}
	}

	if err := m.rebuild(ctx); err != nil {
		m.logger.Error("knowledge base build failed", zap.Error(err))
		return err
	}
	return nil
}

// Reindex forces a rebuild from the corpus
func (m *Manager) Reindex(ctx context.Context) error {
	return m.Initialize(ctx, true)
}

func (m *Manager) newIndex() *vectorstore.Index {
	return vectorstore.NewIndex(m.embedder,
		vectorstore.WithLogger(m.logger),
		vectorstore.WithQueryEmbedder(m.queries))
}

func (m *Manager) rebuild(ctx context.Context) error {
	start := time.Now()

	paths, err := processor.ListPDFs(m.cfg.Corpus.PDFDir)
	if err != nil {
		return fmt.Errorf("failed to list corpus: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w in %s", ErrNoSources, m.cfg.Corpus.PDFDir)
	}

	chunks, err := m.ingest(ctx, paths)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no extractable text in %d files", ErrNoSources, len(paths))
	}

	idx := m.newIndex()
	if err := idx.Build(ctx, chunks); err != nil {
		return fmt.Errorf("failed to build vector index: %w", err)
	}
	if err := idx.Save(m.cfg.Corpus.IndexDir); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	m.install(idx)

	m.logger.Info("knowledge base built",
		zap.Int("files", len(paths)), zap.Int("chunks", len(chunks)),
		zap.Bool("vectors", idx.Available()), zap.String("generation", idx.Metadata().Generation),
		zap.Duration("took", time.Since(start)))

	if m.mirror != nil {
		m.mirrorGeneration(ctx, idx)
	}
	return nil
}

type fileChunks struct {
	chunks []models.DocumentChunk
	pages  int
}

// ingest extracts and chunks every file on an ants pool. Output order
// follows paths so chunk positions are deterministic.
func (m *Manager) ingest(ctx context.Context, paths []string) ([]models.DocumentChunk, error) {
	pool, err := ants.NewPool(m.cfg.Corpus.IngestWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingestion pool: %w", err)
	}
	defer pool.Release()

	results := make([]fileChunks, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			results[i] = m.processFile(path)
		}
		if err := pool.Submit(task); err != nil {
			m.logger.Warn("ingestion pool rejected task, running inline", zap.String("path", path), zap.Error(err))
			task()
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingestion cancelled: %w", err)
	}

	var (
		chunks  []models.DocumentChunk
		pages   int
		okFiles int
	)
	for _, r := range results {
		if r.pages > 0 {
			okFiles++
		}
		pages += r.pages
		chunks = append(chunks, r.chunks...)
	}
	m.logger.Info("corpus ingested",
		zap.Int("files", len(paths)), zap.Int("files_with_text", okFiles),
		zap.Int("pages", pages), zap.Int("chunks", len(chunks)))
	return chunks, nil
}

func (m *Manager) processFile(path string) fileChunks {
	source := filepath.Base(path)
	pages := m.extractor.Extract(path)

	var out fileChunks
	out.pages = len(pages)
	for _, page := range pages {
		for _, sc := range m.chunker.Chunk(page.Text, source, page.Number) {
			out.chunks = append(out.chunks, sc.ToDocumentChunk())
		}
	}
	m.logger.Debug("processed file",
		zap.String("source", source), zap.Int("pages", out.pages), zap.Int("chunks", len(out.chunks)))
	return out
}

// install swaps in a new generation built over idx
func (m *Manager) install(idx *vectorstore.Index) {
	chunks := idx.Chunks()
	texts := make([]string, len(chunks))
	byID := make(map[string]int, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
		byID[c.ChunkID] = i
	}
	kw := keyword.NewIndex()
	kw.Build(texts)

	engine := search.NewEngine(idx, kw, chunks,
		search.WithWeights(m.cfg.Retrieval.VectorWeight, m.cfg.Retrieval.KeywordWeight),
		search.WithScoreThreshold(m.cfg.Retrieval.ScoreThreshold),
		search.WithLogger(m.logger),
	)

	m.mu.Lock()
	m.current = &generation{vectors: idx, keywords: kw, engine: engine, byID: byID}
	m.mu.Unlock()

	m.logger.Info("keyword index built", zap.Int("terms", kw.Terms()), zap.Int("postings", kw.Postings()))
}

func (m *Manager) mirrorGeneration(ctx context.Context, idx *vectorstore.Index) {
	var vectors [][]float32
	if idx.Available() {
		vectors = make([][]float32, idx.Len())
		for i := range vectors {
			vectors[i], _ = idx.Vector(i)
		}
	}
	if err := m.mirror.ReplaceAll(ctx, idx.Chunks(), vectors); err != nil {
		m.logger.Warn("failed to mirror index", zap.Error(err))
		return
	}
	m.logger.Info("index mirrored", zap.Int("chunks", idx.Len()))
}

func (m *Manager) snapshot() *generation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsAvailable reports whether any retrieval leg can serve queries. An empty
// Query result with IsAvailable true means nothing relevant was found.
func (m *Manager) IsAvailable() bool {
	g := m.snapshot()
	return g != nil && (g.engine.VectorAvailable() || g.engine.KeywordAvailable())
}
