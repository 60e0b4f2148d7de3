package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFResult holds extracted PDF text and document metadata.
type PDFResult struct {
	Text   string
	Pages  int
	Title  string
	Author string
}

// PDFExtractor extracts text and metadata from PDF bytes.
type PDFExtractor struct{}

// NewPDF creates a PDFExtractor.
func NewPDF() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract parses PDF bytes into page text (pages separated by form
// feed) plus Title/Author from the document information dictionary.
// Malformed documents return an error naming the parse failure.
func (e *PDFExtractor) Extract(data []byte) (result *PDFResult, err error) {
	// The underlying parser panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("pdf parse failed: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf parse failed: %w", err)
	}

	pages := reader.NumPage()
	texts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			// Keep going: a single unreadable page should not lose
			// the rest of the document.
			continue
		}
		texts = append(texts, strings.TrimSpace(text))
	}

	result = &PDFResult{
		Text:  strings.TrimSpace(strings.Join(texts, "\f")),
		Pages: pages,
	}

	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		result.Title = infoString(info, "Title")
		result.Author = infoString(info, "Author")
	}

	return result, nil
}

func infoString(info pdf.Value, key string) string {
	v := info.Key(key)
	if v.IsNull() {
		return ""
	}
	return strings.TrimSpace(v.Text())
}
