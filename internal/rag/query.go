package rag

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"orienta-rag/internal/keyword"
	"orienta-rag/internal/models"
	"orienta-rag/internal/processor"
	"orienta-rag/internal/search"
	"orienta-rag/internal/vectorstore"
)

const contextHeader = "## CONTEXTE SPÉCIALISÉ - ÉCOLES SUPÉRIEURES MAROCAINES\n" +
	"*Source: Documentation officielle des établissements*\n\n"

var abbreviations = map[string]string{
	"ensa":   "école nationale des sciences appliquées",
	"emsi":   "école marocaine des sciences de l'ingénieur",
	"ensam":  "école nationale supérieure d'arts et métiers",
	"emi":    "école mohammadia d'ingénieurs",
	"ensias": "école nationale supérieure d'informatique et d'analyse des systèmes",
	"encg":   "école nationale de commerce et de gestion",
	"fsjes":  "faculté des sciences juridiques économiques et sociales",
	"fst":    "faculté des sciences et techniques",
	"est":    "école supérieure de technologie",
}

// EST must be capitalized so the verb "est" is left alone
var abbreviationRe = regexp.MustCompile(`\b(?:(?i:ensa|emsi|ensam|emi|ensias|encg|fsjes|fst)|EST)\b`)

// ExpandAbbreviations appends the full name after each known institution
// abbreviation, keeping the abbreviation itself.
func ExpandAbbreviations(query string) string {
	return abbreviationRe.ReplaceAllStringFunc(query, func(abbr string) string {
		return abbr + " " + abbreviations[strings.ToLower(abbr)]
	})
}

// QueryOptions tunes one retrieval request. Zero values use the configured defaults.
type QueryOptions struct {
	TopK         int
	Mode         models.SearchMode
	MinScore     float64
	Sources      []string
	ContentTypes []models.ContentType
}

// Query returns the ranked chunks for text. The search mode is resolved on
// the raw text; the search itself runs on the abbreviation-expanded text.
// Failures yield an empty list.
func (m *Manager) Query(ctx context.Context, text string, opts QueryOptions) []models.SearchResult {
	g := m.snapshot()
	if g == nil {
		m.logger.Warn("query before knowledge base initialization")
		return nil
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = m.cfg.Retrieval.TopK
	}
	mode := opts.Mode
	if mode == "" {
		mode = models.ModeAuto
	}

	resolved, qt := g.engine.ResolveMode(text, mode)
	expanded := ExpandAbbreviations(text)
	results := g.engine.SearchFiltered(ctx, expanded, topK, resolved, search.Filter{
		Sources:      opts.Sources,
		ContentTypes: opts.ContentTypes,
		MinScore:     opts.MinScore,
	})

	m.logger.Debug("query",
		zap.String("query", text), zap.String("query_type", string(qt)),
		zap.String("mode", string(resolved)), zap.Int("results", len(results)))
	return results
}

// ContextFor formats the top results into a context block for prompt
// assembly. Returns "" when nothing relevant was found.
func (m *Manager) ContextFor(ctx context.Context, text string) string {
	results := m.Query(ctx, text, QueryOptions{TopK: m.cfg.Retrieval.MaxContextChunks})
	block, _ := m.FormatContext(results)
	return block
}

// FormatContext renders results as a context block. Snippets are appended
// whole until the next one would exceed the context window. It returns the
// block and the number of results it holds; the block is "" when none fit.
func (m *Manager) FormatContext(results []models.SearchResult) (string, int) {
	var (
		sb    strings.Builder
		total int
		used  int
	)
	for _, r := range results {
		snippet := fmt.Sprintf("\n**[%s - Page %d]** (score %.2f)\n%s\n",
			r.Chunk.Source, r.Chunk.PageNumber, r.Score(), r.Chunk.Content)
		n := utf8.RuneCountInString(snippet)
		if total+n > m.cfg.Retrieval.ContextWindow {
			break
		}
		sb.WriteString(snippet)
		total += n
		used++
	}
	if used == 0 {
		return "", 0
	}

	m.logger.Debug("context built", zap.Int("chunks", used), zap.Int("chars", total))
	return contextHeader + sb.String(), used
}

// Status reports which retrieval legs are live
type Status struct {
	Ready            bool   `json:"ready"`
	VectorSearch     bool   `json:"vector_search"`
	KeywordSearch    bool   `json:"keyword_search"`
	EmbeddingBackend bool   `json:"embedding_backend"`
	Generation       string `json:"generation,omitempty"`
	Chunks           int    `json:"chunks"`
}

// Status returns the availability of each retrieval leg
func (m *Manager) Status() Status {
	s := Status{EmbeddingBackend: m.embedder.Available()}
	g := m.snapshot()
	if g == nil {
		return s
	}
	s.VectorSearch = g.engine.VectorAvailable()
	s.KeywordSearch = g.engine.KeywordAvailable()
	s.Ready = s.VectorSearch || s.KeywordSearch
	s.Generation = g.vectors.Metadata().Generation
	s.Chunks = g.vectors.Len()
	return s
}

// Stats describes the live generation and the retrieval configuration
type Stats struct {
	Status           Status               `json:"status"`
	Index            vectorstore.Metadata `json:"index"`
	Search           search.Stats         `json:"search"`
	PDFDir           string               `json:"pdf_dir"`
	PDFFiles         int                  `json:"pdf_files_count"`
	ChunkSize        int                  `json:"chunk_size"`
	ChunkOverlap     int                  `json:"chunk_overlap"`
	MaxContextChunks int                  `json:"max_context_chunks"`
	ScoreThreshold   float64              `json:"score_threshold"`
	ContextWindow    int                  `json:"context_window_size"`
}

// Stats returns index and configuration statistics
func (m *Manager) Stats() Stats {
	s := Stats{
		Status:           m.Status(),
		PDFDir:           m.cfg.Corpus.PDFDir,
		ChunkSize:        m.cfg.Chunking.ChunkSize,
		ChunkOverlap:     m.cfg.Chunking.ChunkOverlap,
		MaxContextChunks: m.cfg.Retrieval.MaxContextChunks,
		ScoreThreshold:   m.cfg.Retrieval.ScoreThreshold,
		ContextWindow:    m.cfg.Retrieval.ContextWindow,
	}
	if paths, err := processor.ListPDFs(m.cfg.Corpus.PDFDir); err == nil {
		s.PDFFiles = len(paths)
	}
	if g := m.snapshot(); g != nil {
		s.Index = g.vectors.Metadata()
		s.Search = g.engine.Stats()
	}
	return s
}

// SourceInfo summarizes the chunks indexed from one document
type SourceInfo struct {
	Source          string                     `json:"source"`
	Chunks          int                        `json:"chunks"`
	Pages           int                        `json:"pages"`
	InstitutionName string                     `json:"institution_name"`
	InstitutionType models.InstitutionType     `json:"institution_type"`
	ContentTypes    map[models.ContentType]int `json:"content_types"`
}

// Sources lists the indexed documents in name order
func (m *Manager) Sources() []SourceInfo {
	g := m.snapshot()
	if g == nil {
		return nil
	}

	bySource := map[string]*SourceInfo{}
	pages := map[string]map[int]bool{}
	for _, c := range g.vectors.Chunks() {
		info, ok := bySource[c.Source]
		if !ok {
			info = &SourceInfo{
				Source:          c.Source,
				InstitutionName: c.MetaString("institution_name"),
				InstitutionType: models.InstitutionType(c.MetaString("institution_type")),
				ContentTypes:    map[models.ContentType]int{},
			}
			bySource[c.Source] = info
			pages[c.Source] = map[int]bool{}
		}
		info.Chunks++
		info.ContentTypes[c.ContentType()]++
		pages[c.Source][c.PageNumber] = true
	}

	out := make([]SourceInfo, 0, len(bySource))
	for src, info := range bySource {
		info.Pages = len(pages[src])
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Similar returns the k chunks closest to chunkID by stored vector, the chunk itself excluded
func (m *Manager) Similar(ctx context.Context, chunkID string, k int) ([]models.SearchResult, error) {
	g := m.snapshot()
	if g == nil {
		return nil, ErrUnavailable
	}
	pos, ok := g.byID[chunkID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, chunkID)
	}
	vec, ok := g.vectors.Vector(pos)
	if !ok {
		return nil, fmt.Errorf("%w: no vectors in the live index", ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := g.vectors.SearchVector(vec, k, -1, pos)
	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, models.SearchResult{
			Chunk:       h.Chunk,
			VectorScore: h.Score,
			HybridScore: h.Score,
			ContentType: h.Chunk.ContentType(),
		})
	}
	return results, nil
}

// TermInfo explains how one query term is seen by the keyword index
type TermInfo struct {
	Term    string  `json:"term"`
	Indexed bool    `json:"indexed"`
	IDF     float64 `json:"idf"`
	Chunks  int     `json:"chunks"`
}

// QueryKeywords tokenizes text as the keyword leg does, after abbreviation
// expansion, and reports each distinct term's standing in the live index.
func (m *Manager) QueryKeywords(text string) []TermInfo {
	g := m.snapshot()
	seen := map[string]bool{}
	var out []TermInfo
	for _, term := range keyword.Tokenize(ExpandAbbreviations(text)) {
		if seen[term] {
			continue
		}
		seen[term] = true
		info := TermInfo{Term: term}
		if g != nil {
			info.IDF, info.Indexed = g.keywords.IDF(term)
			info.Chunks = len(g.keywords.Positions(term))
		}
		out = append(out, info)
	}
	return out
}
