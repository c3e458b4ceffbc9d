package service

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/Strob0t/ReviewForge/internal/domain"
	"github.com/Strob0t/ReviewForge/internal/domain/document"
)

// TextExtractor pulls plain text out of a page-structured document.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Ingestor turns uploaded bytes into a validated Document.
type Ingestor struct {
	gate document.Gate
	pdf  TextExtractor
}

// NewIngestor creates an Ingestor. pdf may be nil, in which case PDF uploads
// are rejected.
func NewIngestor(gate document.Gate, pdf TextExtractor) *Ingestor {
	return &Ingestor{gate: gate, pdf: pdf}
}

// Ingest extracts and validates a document. format may be empty, in which
// case it is inferred from the filename extension.
func (i *Ingestor) Ingest(ctx context.Context, filename, format string, data []byte) (document.Document, error) {
	var (
		f   document.Format
		err error
	)
	if format != "" {
		f, err = document.ParseFormat(format)
	} else {
		f, err = document.FormatFromFilename(filename)
	}
	if err != nil {
		return document.Document{}, err
	}

	var text string
	switch f {
	case document.FormatText:
		data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
		if !utf8.Valid(data) {
			return document.Document{}, fmt.Errorf("%w: file is not valid UTF-8 text", domain.ErrValidation)
		}
		text = string(data)
	case document.FormatPDF:
		if i.pdf == nil {
			return document.Document{}, fmt.Errorf("%w: PDF extraction is not available", domain.ErrValidation)
		}
		text, err = i.pdf.ExtractText(ctx, data)
		if err != nil {
			return document.Document{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
	}

	return i.gate.New(filename, f, text)
}
