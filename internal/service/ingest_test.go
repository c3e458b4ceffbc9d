package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/ReviewForge/internal/domain"
	"github.com/Strob0t/ReviewForge/internal/domain/document"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) ExtractText(context.Context, []byte) (string, error) { return f.text, f.err }

var complaintText = "COMPLAINT. Plaintiff Jane Roe brings this action against Defendant Acme Corp. " +
	strings.Repeat("Paragraph 1 alleges the defendant misrepresented safety data. ", 3)

func TestIngestText(t *testing.T) {
	ing := NewIngestor(document.DefaultGate(), nil)

	doc, err := ing.Ingest(context.Background(), "complaint.txt", "", []byte("\xef\xbb\xbf"+complaintText))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Format != document.FormatText || doc.Name != "complaint.txt" {
		t.Errorf("unexpected document %+v", doc)
	}
	if strings.HasPrefix(doc.Text, "\ufeff") {
		t.Error("byte order mark should be stripped")
	}
}

func TestIngestRejects(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		format   string
		data     string
		pdf      TextExtractor
	}{
		{"unsupported extension", "complaint.docx", "", complaintText, nil},
		{"too short", "c.txt", "", "plaintiff", nil},
		{"not a complaint", "c.txt", "", strings.Repeat("recipe for soup ", 20), nil},
		{"invalid utf-8", "c.txt", "", "\xff\xfe" + complaintText, nil},
		{"pdf without extractor", "c.pdf", "", "%PDF-1.7", nil},
		{"pdf extraction error", "c.pdf", "", "%PDF-1.7", fakeExtractor{err: errors.New("corrupt xref table")}},
		{"unknown declared format", "c.txt", "rtf", complaintText, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := NewIngestor(document.DefaultGate(), tt.pdf)
			_, err := ing.Ingest(context.Background(), tt.filename, tt.format, []byte(tt.data))
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestIngestPDF(t *testing.T) {
	ing := NewIngestor(document.DefaultGate(), fakeExtractor{text: complaintText})

	doc, err := ing.Ingest(context.Background(), "upload.bin", "pdf", []byte("%PDF-1.7"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Format != document.FormatPDF {
		t.Errorf("declared format should win over the extension, got %s", doc.Format)
	}
}
