// Package document defines the immutable input of a review run and the
// ingestion sanity gate applied before a run is created.
package document

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Strob0t/ReviewForge/internal/domain"
)

// Format identifies how the raw bytes of a document are encoded.
type Format string

const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
)

// FormatFromFilename maps a file extension to a Format.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return FormatText, nil
	case ".pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: only PDF and TXT files are supported", domain.ErrValidation)
	}
}

// ParseFormat accepts a declared format tag ("text", "txt", "pdf").
func ParseFormat(tag string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "text", "txt", "text/plain":
		return FormatText, nil
	case "pdf", "application/pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: unsupported document format %q", domain.ErrValidation, tag)
	}
}

// Document is the source text every role works against. It is never mutated.
type Document struct {
	Name   string `json:"name"`
	Format Format `json:"format"`
	Text   string `json:"-"`
}

// Len returns the number of characters in the document text.
func (d Document) Len() int { return utf8.RuneCountInString(d.Text) }

// Gate is the ingestion sanity check.
type Gate struct {
	MinChars   int
	Indicators []string
}

// DefaultGate mirrors the stock configuration: at least 100 characters after
// trimming and one of the usual complaint vocabulary terms.
func DefaultGate() Gate {
	return Gate{
		MinChars:   100,
		Indicators: []string{"complaint", "plaintiff", "defendant", "paragraph"},
	}
}

// Validate reports an ErrValidation-wrapped error when text fails the gate.
func (g Gate) Validate(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("%w: document contains no text", domain.ErrValidation)
	}
	if utf8.RuneCountInString(trimmed) < g.MinChars {
		return fmt.Errorf("%w: document too short (minimum %d characters)", domain.ErrValidation, g.MinChars)
	}
	if len(g.Indicators) == 0 {
		return nil
	}
	lower := strings.ToLower(trimmed)
	for _, ind := range g.Indicators {
		if strings.Contains(lower, strings.ToLower(ind)) {
			return nil
		}
	}
	return fmt.Errorf("%w: document does not look like a complaint (expected one of: %s)",
		domain.ErrValidation, strings.Join(g.Indicators, ", "))
}

// New validates text against g and returns the Document.
func (g Gate) New(name string, format Format, text string) (Document, error) {
	text = strings.TrimSpace(text)
	if err := g.Validate(text); err != nil {
		return Document{}, err
	}
	return Document{Name: name, Format: format, Text: text}, nil
}
