package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/ReviewForge/internal/domain"
)

// padded returns a string of exactly n characters starting with prefix.
func padded(prefix string, n int) string {
	return prefix + strings.Repeat("x", n-len(prefix))
}

func TestGateValidate(t *testing.T) {
	g := DefaultGate()

	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"99 chars rejected", padded("plaintiff ", 99), true},
		{"100 chars with plaintiff", padded("plaintiff ", 100), false},
		{"100 chars after trimming whitespace", "   \n" + padded("plaintiff ", 100) + "\n\t ", false},
		{"99 chars padded with whitespace", "      " + padded("plaintiff ", 99) + "     ", true},
		{"no indicator", strings.Repeat("lorem ipsum ", 20), true},
		{"indicator is case-insensitive", padded("The DEFENDANT ", 120), false},
		{"empty", "", true},
		{"whitespace only", "   \n\t  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Validate(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestGateCountsCharactersNotBytes(t *testing.T) {
	g := Gate{MinChars: 10, Indicators: []string{"§"}}
	// 9 runes, 10+ bytes
	if err := g.Validate("§§§§§§§§§"); err == nil {
		t.Fatal("expected 9 multi-byte characters to be rejected")
	}
	if err := g.Validate("§§§§§§§§§§"); err != nil {
		t.Fatalf("expected 10 characters to pass, got %v", err)
	}
}

func TestGateWithoutIndicators(t *testing.T) {
	g := Gate{MinChars: 3}
	if err := g.Validate("abc"); err != nil {
		t.Fatalf("expected pass without indicators, got %v", err)
	}
}

func TestGateNewTrims(t *testing.T) {
	text := "\n\n" + padded("complaint ", 150) + "\n"
	doc, err := DefaultGate().New("c.txt", FormatText, text)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Text != strings.TrimSpace(text) {
		t.Error("expected trimmed document text")
	}
	if doc.Len() != 150 {
		t.Errorf("expected length 150, got %d", doc.Len())
	}
}

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"complaint.pdf", FormatPDF, false},
		{"COMPLAINT.PDF", FormatPDF, false},
		{"notes.txt", FormatText, false},
		{"brief.docx", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromFilename(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if err != nil && err.Error() != "validation failed: only PDF and TXT files are supported" {
				t.Errorf("unexpected message %q", err.Error())
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("PDF"); err != nil || f != FormatPDF {
		t.Errorf("ParseFormat(PDF) = %q, %v", f, err)
	}
	if f, err := ParseFormat("text/plain"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(text/plain) = %q, %v", f, err)
	}
	if _, err := ParseFormat("rtf"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
