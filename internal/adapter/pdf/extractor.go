// Package pdf extracts plain text from PDF documents page by page.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a PDF has no extractable text, e.g. scanned images.
var ErrNoText = errors.New("pdf contains no extractable text")

// Extractor implements service.TextExtractor.
type Extractor struct {
	maxPages int
}

// NewExtractor creates an Extractor. maxPages <= 0 means no limit.
func NewExtractor(maxPages int) *Extractor {
	return &Extractor{maxPages: maxPages}
}

// ExtractText concatenates the text of every page, each followed by a
// newline, and trims the result.
func (e *Extractor) ExtractText(ctx context.Context, data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("error extracting text from PDF: malformed document: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("error extracting text from PDF: %w", err)
	}

	pages := r.NumPage()
	if e.maxPages > 0 && pages > e.maxPages {
		return "", fmt.Errorf("pdf has %d pages, limit is %d", pages, e.maxPages)
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if !p.V.IsNull() {
			pageText, err := p.GetPlainText(nil)
			if err != nil {
				return "", fmt.Errorf("error extracting text from PDF page %d: %w", i, err)
			}
			b.WriteString(pageText)
		}
		b.WriteByte('\n')
	}

	text = strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
