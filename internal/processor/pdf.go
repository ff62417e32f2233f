package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Page is the cleaned text of one PDF page
type Page struct {
	Number int
	Text   string
}

// Extractor turns a document into cleaned pages
type Extractor interface {
	Extract(path string) []Page
}

// PDFExtractor reads PDF files page by page
type PDFExtractor struct {
	logger *zap.Logger
}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor(logger *zap.Logger) *PDFExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFExtractor{logger: logger}
}

// Extract returns the non-empty cleaned pages of a PDF. A file that cannot be
// opened yields no pages; a page that fails to decode is skipped.
func (p *PDFExtractor) Extract(path string) []Page {
	f, r, err := openPDF(path)
	if err != nil {
		p.logger.Error("failed to open PDF", zap.String("path", path), zap.Error(err))
		return nil
	}
	defer f.Close()

	var pages []Page
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		text, err := pageText(r, i)
		if err != nil {
			p.logger.Warn("skipping unreadable page",
				zap.String("path", path), zap.Int("page", i), zap.Error(err))
			continue
		}
		cleaned := CleanText(text)
		if cleaned == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: cleaned})
	}

	p.logger.Debug("extracted PDF",
		zap.String("path", path), zap.Int("pages", total), zap.Int("kept", len(pages)))
	return pages
}

// openPDF wraps pdf.Open, which panics on some malformed trailers
func openPDF(path string) (f *os.File, r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if f != nil {
				f.Close()
			}
			f, r, err = nil, nil, fmt.Errorf("failed to parse PDF: %v", rec)
		}
	}()
	f, r, err = pdf.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return f, r, nil
}

func pageText(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to decode page: %v", rec)
		}
	}()
	page := r.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract plain text: %w", err)
	}
	return text, nil
}

// ListPDFs returns the PDF files of a directory in name order
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

var (
	glyphReplacer = strings.NewReplacer(
		"–", "-", "—", "-", "‒", "-", "−", "-",
		"“", `"`, "”", `"`, "«", `"`, "»", `"`,
		"‘", "'", "’", "'", "ʼ", "'",
		"…", "...", "•", " ",
		"\r\n", "\n", "\r", "\n", "\f", "\n\n",
	)
	horizontalSpaceRe = regexp.MustCompile(`[ \t\v]+`)
	blankLinesRe      = regexp.MustCompile(`\n[ ]*(?:\n[ ]*)+`)
)

// keepPunct lists the punctuation that survives cleaning
const keepPunct = `-.,;:!?()[]{}"'/%+&@`

// CleanText normalizes extracted page text. Runs of spaces collapse to one,
// blank-line runs collapse to a paragraph break, typographic dashes and quotes
// become ASCII, and control or symbol characters outside the kept set are dropped.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFC.String(text)
	text = glyphReplacer.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case strings.ContainsRune(keepPunct, r):
			b.WriteRune(r)
		}
	}

	text = horizontalSpaceRe.ReplaceAllString(b.String(), " ")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
