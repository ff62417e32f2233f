package processor

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"orienta-rag/internal/models"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// DefaultMaxChunkSize bounds fallback chunks, in characters
	DefaultMaxChunkSize = 800
	// DefaultChunkOverlap is carried between hard-cut windows of an oversized paragraph
	DefaultChunkOverlap = 150
	// institutionWindow is how much leading page text institution detection reads
	institutionWindow = 1000
	// titleWeight is the hit bonus when a pattern matches the section title
	titleWeight = 3
	// frequentWords is how many frequency-derived keywords join the seed list
	frequentWords = 5
)

// SemanticChunker splits page text into classified, entity-tagged chunks
type SemanticChunker struct {
	maxChunkSize int
	overlap      int
	logger       *zap.Logger
}

// Option configures a SemanticChunker
type Option func(*SemanticChunker)

// WithMaxChunkSize sets the fallback chunk size bound
func WithMaxChunkSize(size int) Option {
	return func(c *SemanticChunker) {
		if size > 0 {
			c.maxChunkSize = size
		}
	}
}

// WithOverlap sets the overlap used between hard-cut windows
func WithOverlap(overlap int) Option {
	return func(c *SemanticChunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *SemanticChunker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewSemanticChunker creates a chunker with the given options
func NewSemanticChunker(opts ...Option) *SemanticChunker {
	c := &SemanticChunker{
		maxChunkSize: DefaultMaxChunkSize,
		overlap:      DefaultChunkOverlap,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.maxChunkSize {
		c.overlap = c.maxChunkSize / 4
	}
	return c
}

// MaxChunkSize returns the configured fallback bound
func (c *SemanticChunker) MaxChunkSize() int {
	return c.maxChunkSize
}

type section struct {
	title string
	body  string
	// heading is true when title came from the text rather than the fallback splitter
	heading bool
}

// Chunk turns one page into semantic chunks. Whitespace-only text yields none.
func (c *SemanticChunker) Chunk(text, source string, page int) []models.SemanticChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	instType, instCode, instName := c.DetectInstitution(source, text)

	sections := c.splitBySections(text)
	if len(sections) <= 1 {
		sections = c.splitParagraphs(text)
	} else {
		sections = c.boundSections(sections)
	}

	chunks := make([]models.SemanticChunk, 0, len(sections))
	for _, sec := range sections {
		body := strings.TrimSpace(sec.body)
		if body == "" {
			continue
		}
		content := body
		if sec.heading && sec.title != "" {
			content = sec.title + "\n" + body
		}

		contentType, confidence := DetectContentType(body, sec.title)
		index := len(chunks) + 1
		chunks = append(chunks, models.SemanticChunk{
			ChunkID:         ChunkID(source, page, index),
			Content:         content,
			Source:          source,
			PageNumber:      page,
			ChunkIndex:      index,
			ContentType:     contentType,
			InstitutionType: instType,
			InstitutionCode: instCode,
			InstitutionName: instName,
			Entities:        ExtractEntities(body, contentType),
			Confidence:      confidence,
			SectionTitle:    sec.title,
			Keywords:        ExtractKeywords(body, contentType),
		})
	}

	c.logger.Debug("chunked page",
		zap.String("source", source), zap.Int("page", page),
		zap.Int("sections", len(sections)), zap.Int("chunks", len(chunks)))
	return chunks
}

// ChunkID builds the deterministic identifier of the index-th chunk of a page
func ChunkID(source string, page, index int) string {
	return fmt.Sprintf("%s_page_%d_semantic_%d", source, page, index)
}

// DetectInstitution classifies the institution behind a document from its
// filename and leading text. The first table entry that matches wins.
func (c *SemanticChunker) DetectInstitution(source, text string) (models.InstitutionType, string, string) {
	name := fileStem(source)
	window := text
	if len(window) > institutionWindow {
		window = truncateRunes(window, institutionWindow)
	}
	combined := name + " " + window

	for _, entry := range institutionTable {
		for _, re := range entry.Patterns {
			if !re.MatchString(combined) {
				continue
			}
			return entry.Category, entry.Code, c.institutionName(entry, combined, name)
		}
	}
	return models.InstitutionOther, "", c.genericName(name)
}

func (c *SemanticChunker) institutionName(entry institutionPattern, combined, stem string) string {
	for _, re := range entry.Name {
		m := re.FindStringSubmatch(combined)
		if m == nil {
			continue
		}
		city := strings.TrimSpace(strings.ReplaceAll(m[1], "-", " ") + m[2])
		return strings.ToUpper(entry.Code) + " " + titleCase(city)
	}
	return c.genericName(stem)
}

func (c *SemanticChunker) genericName(stem string) string {
	return titleCase(strings.Join(strings.Fields(stem), " "))
}

// titleCase builds a fresh Caser per call; Casers are not safe for concurrent use
func titleCase(s string) string {
	return cases.Title(language.French).String(strings.ToLower(s))
}

// fileStem strips the directory and extension and turns separators into spaces
func fileStem(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.NewReplacer("_", " ", "-", " ").Replace(base)
}

// DetectContentType scores text and title against every content-type table.
// A title hit counts triple. The highest normalized score wins; no hits, or a
// tie at the top, yields ContentOther. Confidence is the winning score capped at 1.
func DetectContentType(text, title string) (models.ContentType, float64) {
	lowered := strings.ToLower(text + " " + title)
	loweredTitle := strings.ToLower(title)

	best := models.ContentOther
	bestScore := 0.0
	tied := false
	for _, ct := range models.ContentTypes {
		patterns := contentTypePatterns[ct]
		hits := 0
		for _, re := range patterns {
			hits += len(re.FindAllStringIndex(lowered, -1))
			if loweredTitle != "" && re.MatchString(loweredTitle) {
				hits += titleWeight
			}
		}
		score := float64(hits) / float64(len(patterns))
		switch {
		case score > bestScore:
			best, bestScore, tied = ct, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return models.ContentOther, min(bestScore, 1.0)
	}
	return best, min(bestScore, 1.0)
}

// splitBySections groups lines under heading-like lines. A heading-like line
// that follows a heading with no body yet is kept as a body line, and a
// trailing heading with no body becomes its own section.
func (c *SemanticChunker) splitBySections(text string) []section {
	var (
		sections []section
		title    string
		body     []string
	)
	flush := func() {
		switch {
		case len(body) > 0:
			sections = append(sections, section{title: title, body: strings.Join(body, "\n"), heading: title != ""})
		case title != "":
			sections = append(sections, section{title: title, body: title})
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isHeading(line) {
			if title != "" && len(body) == 0 {
				body = append(body, line)
				continue
			}
			flush()
			title = line
			body = nil
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

func isHeading(line string) bool {
	if utf8.RuneCountInString(line) >= maxHeadingLength {
		return false
	}
	for _, re := range headingPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// boundSections re-splits heading sections whose body exceeds the size bound
func (c *SemanticChunker) boundSections(sections []section) []section {
	out := make([]section, 0, len(sections))
	for _, sec := range sections {
		if utf8.RuneCountInString(sec.body) <= c.maxChunkSize {
			out = append(out, sec)
			continue
		}
		for i, part := range c.splitParagraphs(sec.body) {
			out = append(out, section{title: sec.title, body: part.body, heading: sec.heading && i == 0})
		}
	}
	return out
}

// splitParagraphs packs paragraphs into chunks of at most maxChunkSize
// characters. Paragraphs longer than the bound are cut on sentence, then word,
// then fixed-width boundaries.
func (c *SemanticChunker) splitParagraphs(text string) []section {
	var (
		out     []section
		current strings.Builder
		curLen  int
	)
	emit := func(body string) {
		out = append(out, section{title: fmt.Sprintf("Section %d", len(out)+1), body: body})
	}
	flush := func() {
		if curLen > 0 {
			emit(current.String())
			current.Reset()
			curLen = 0
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n := utf8.RuneCountInString(para)
		if n > c.maxChunkSize {
			flush()
			for _, piece := range c.splitOversized(para) {
				emit(piece)
			}
			continue
		}
		if curLen > 0 && curLen+2+n > c.maxChunkSize {
			flush()
		}
		if curLen > 0 {
			current.WriteString("\n\n")
			curLen += 2
		}
		current.WriteString(para)
		curLen += n
	}
	flush()
	return out
}

// splitOversized cuts one long paragraph into pieces of at most maxChunkSize
// runes. Every iteration advances, so input without any break still terminates.
func (c *SemanticChunker) splitOversized(text string) []string {
	runes := []rune(text)
	size := c.maxChunkSize
	var pieces []string

	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			if piece := strings.TrimSpace(string(runes[start:])); piece != "" {
				pieces = append(pieces, piece)
			}
			break
		}

		next := end
		if cut := lastBreak(runes, start+size/2, end); cut > start {
			end, next = cut, cut
		} else {
			next = end - c.overlap
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			pieces = append(pieces, piece)
		}
		start = next
	}
	return pieces
}

// lastBreak finds the best cut in runes[from:to]: just after a sentence end,
// else at a space. It returns -1 when there is neither.
func lastBreak(runes []rune, from, to int) int {
	space := -1
	for i := to - 1; i >= from; i-- {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			return i + 1
		}
		if space < 0 && (r == ' ' || r == '\n') {
			space = i
		}
	}
	return space
}

// ExtractEntities runs the general entity battery, then the extractors
// specific to the content type
func ExtractEntities(text string, contentType models.ContentType) models.Entities {
	entities := models.Entities{}
	for _, key := range entityOrder {
		var values []string
		for _, re := range entityPatterns[key] {
			values = append(values, findValues(re, text)...)
		}
		if len(values) > 0 {
			entities[key] = dedupe(values)
		}
	}

	switch contentType {
	case models.ContentAdmission:
		var tracks []string
		for _, m := range filierePattern.FindAllStringSubmatch(text, -1) {
			tracks = append(tracks, strings.ToLower(m[1]))
		}
		if len(tracks) > 0 {
			entities["filieres_acceptees"] = dedupe(tracks)
		}
	case models.ContentProcedures:
		var steps []string
		for _, m := range stepPattern.FindAllStringSubmatch(text, -1) {
			steps = append(steps, m[1]+". "+strings.TrimSpace(m[2]))
		}
		if len(steps) > 0 {
			entities["etapes"] = steps
		}
	case models.ContentCareers:
		var jobs []string
		for _, re := range careerPatterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				jobs = append(jobs, strings.ToLower(m[1]))
			}
		}
		if len(jobs) > 0 {
			entities["metiers_mentionnes"] = dedupe(jobs)
		}
	}
	return entities
}

func findValues(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v := m[0]
		if len(m) > 1 && m[1] != "" {
			v = m[1]
		}
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

// ExtractKeywords unions the seed list of the content type with the most
// frequent long words of the text
func ExtractKeywords(text string, contentType models.ContentType) []string {
	counts := map[string]int{}
	var order []string
	for _, w := range frequentWordRe.FindAllString(strings.ToLower(text), -1) {
		if keywordStopwords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > frequentWords {
		order = order[:frequentWords]
	}

	keywords := append([]string{}, seedKeywords[contentType]...)
	return dedupe(append(keywords, order...))
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
