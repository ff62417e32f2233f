// Package testutil builds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
)

// WritePDF writes a minimal single-font PDF with one page per entry of pages.
// Each page is split on newlines and drawn one line per text row. Only
// printable ASCII survives the standard Helvetica encoding.
func WritePDF(t testing.TB, path string, pages []string) {
	t.Helper()
	if err := os.WriteFile(path, BuildPDF(pages), 0o644); err != nil {
		t.Fatalf("failed to write PDF fixture: %v", err)
	}
}

// BuildPDF returns the bytes of a minimal PDF document
func BuildPDF(pages []string) []byte {
	// object layout: 1 catalog, 2 pages, 3 font, then (page, content) pairs
	var objects []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		content := pageStream(text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func pageStream(text string) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 11 Tf\n14 TL\n72 740 Td\n")
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(&b, "(%s) Tj\nT*\n", escapePDFString(line))
	}
	b.WriteString("ET")
	return b.String()
}

func escapePDFString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`).Replace(s)
}
