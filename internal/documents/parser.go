package documents

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Parsed is the text pulled out of a document.
type Parsed struct {
	Pages int
	Text  string
}

// Parser extracts text from a document file.
type Parser interface {
	Parse(filePath string) (*Parsed, error)
}

// FitzParser reads PDF and EPUB files through MuPDF. Only the first
// maxPages pages contribute text; Pages is always the full count.
type FitzParser struct {
	maxPages int
}

// NewFitzParser creates a new MuPDF-backed parser
func NewFitzParser(maxPages int) *FitzParser {
	if maxPages <= 0 {
		maxPages = 3
	}
	return &FitzParser{maxPages: maxPages}
}

// Parse extracts text from the leading pages
func (p *FitzParser) Parse(filePath string) (*Parsed, error) {
	doc, err := fitz.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	var textParts []string
	pages := doc.NumPage()
	for i := 0; i < pages && i < p.maxPages; i++ {
		text, err := doc.Text(i)
		if err == nil && strings.TrimSpace(text) != "" {
			textParts = append(textParts, text)
		}
	}

	return &Parsed{
		Pages: pages,
		Text:  strings.Join(textParts, "\n\n"),
	}, nil
}

// EPUBZipParser reads an EPUB as a zip of XHTML files. It is the fallback
// when MuPDF cannot open the book. Pages counts content documents.
type EPUBZipParser struct{}

// Parse extracts text from every (X)HTML entry
func (p *EPUBZipParser) Parse(filePath string) (*Parsed, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB as zip: %w", err)
	}
	defer r.Close()

	var textParts []string
	pages := 0
	for _, f := range r.File {
		if !isHTML(f.Name) {
			continue
		}
		pages++
		rc, err := f.Open()
		if err != nil {
			continue
		}
		html, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(extractTextFromHTML(string(html))); text != "" {
			textParts = append(textParts, text)
		}
	}

	return &Parsed{
		Pages: pages,
		Text:  strings.Join(textParts, "\n\n"),
	}, nil
}

func isHTML(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".xhtml") || strings.HasSuffix(name, ".htm")
}

// extractTextFromHTML performs basic HTML tag removal
func extractTextFromHTML(html string) string {
	var result strings.Builder
	inTag := false
	for _, r := range html {
		if r == '<' {
			inTag = true
			continue
		}
		if r == '>' {
			inTag = false
			result.WriteRune(' ')
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}
