package models

// DocumentChunk is the atomic retrievable unit stored in the indexes
type DocumentChunk struct {
	ChunkID    string         `json:"chunk_id"`
	Content    string         `json:"content"`
	Source     string         `json:"source"`
	PageNumber int            `json:"page_number"`
	Metadata   map[string]any `json:"metadata"`
}

// ContentType returns the content classification carried in the metadata
func (c DocumentChunk) ContentType() ContentType {
	if c.Metadata == nil {
		return ContentOther
	}
	switch v := c.Metadata["content_type"].(type) {
	case string:
		return ParseContentType(v)
	case ContentType:
		return v
	}
	return ContentOther
}

// MetaString reads a string metadata value, empty when missing
func (c DocumentChunk) MetaString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	s, _ := c.Metadata[key].(string)
	return s
}

// MetaStrings reads a string list from the metadata. It accepts both the
// in-memory []string form and the []any form produced by JSON decoding.
func (c DocumentChunk) MetaStrings(key string) []string {
	if c.Metadata == nil {
		return nil
	}
	return toStrings(c.Metadata[key])
}

// EntityValues returns the extracted values of one entity family
func (c DocumentChunk) EntityValues(family string) []string {
	if c.Metadata == nil {
		return nil
	}
	switch m := c.Metadata["entities"].(type) {
	case map[string]any:
		return toStrings(m[family])
	case Entities:
		return m[family]
	case map[string][]string:
		return m[family]
	}
	return nil
}

func toStrings(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, x := range vs {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Entities holds regex-extracted values keyed by entity family
type Entities map[string][]string

// SemanticChunk is a DocumentChunk enriched with classification output
type SemanticChunk struct {
	ChunkID         string          `json:"chunk_id"`
	Content         string          `json:"content"`
	Source          string          `json:"source"`
	PageNumber      int             `json:"page_number"`
	ChunkIndex      int             `json:"chunk_index"`
	ContentType     ContentType     `json:"content_type"`
	InstitutionType InstitutionType `json:"institution_type"`
	InstitutionCode string          `json:"institution_code"`
	InstitutionName string          `json:"institution_name"`
	Entities        Entities        `json:"extracted_entities"`
	Confidence      float64         `json:"confidence_score"`
	SectionTitle    string          `json:"section_title"`
	Keywords        []string        `json:"keywords"`
}

// ToDocumentChunk folds the semantic fields into the generic metadata map
func (s SemanticChunk) ToDocumentChunk() DocumentChunk {
	entities := make(map[string]any, len(s.Entities))
	for k, v := range s.Entities {
		entities[k] = v
	}
	return DocumentChunk{
		ChunkID:    s.ChunkID,
		Content:    s.Content,
		Source:     s.Source,
		PageNumber: s.PageNumber,
		Metadata: map[string]any{
			"source_file":      s.Source,
			"page_number":      s.PageNumber,
			"chunk_size":       len(s.Content),
			"chunk_index":      s.ChunkIndex,
			"processing_type":  "semantic",
			"content_type":     string(s.ContentType),
			"institution_type": string(s.InstitutionType),
			"institution_code": s.InstitutionCode,
			"institution_name": s.InstitutionName,
			"confidence_score": s.Confidence,
			"section_title":    s.SectionTitle,
			"keywords":         s.Keywords,
			"entities":         entities,
		},
	}
}

// SearchResult wraps a chunk with the scores that ranked it
type SearchResult struct {
	Chunk            DocumentChunk      `json:"chunk"`
	VectorScore      float64            `json:"vector_score"`
	KeywordScore     float64            `json:"keyword_score"`
	HybridScore      float64            `json:"hybrid_score"`
	MatchedKeywords  []string           `json:"matched_keywords"`
	ContentType      ContentType        `json:"content_type"`
	RelevanceFactors map[string]float64 `json:"relevance_factors"`
}

// Score returns the score that ordered this result in its list. Every search
// path writes it to HybridScore, single-leg modes included.
func (r SearchResult) Score() float64 {
	return r.HybridScore
}

// Response represents the answer produced by the LLM
type Response struct {
	Answer    string          `json:"answer"`
	Sources   []DocumentChunk `json:"sources"`
	Grounded  bool            `json:"grounded"`
	Timestamp string          `json:"timestamp"`
}
