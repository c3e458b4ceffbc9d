package revision

import (
	"strings"
	"testing"
)

func TestDefaultPolicyClassify(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name     string
		critique string
		want     Decision
	}{
		{"approval phrase", "No issues found. All entries verified.", Approved},
		{"rejection with failing row", "Error: citation mismatch in paragraph 3. | **Fail** |", Rejected},
		{"all rows pass", "| **Pass** | Row 1\n| **Pass** | Row 2", Approved},
		{"negated approval phrases", "The chart shows no hallucinations and no errors.", Approved},
		{"empty", "", Rejected},
		{"no signal", "I looked at the chart.", Rejected},
		{"case-insensitive approval", "THE CHART IS ACCURATE.", Approved},
		{"warning row rejects", "Warning: attribution is off.\n| **Warning** | Row 4", Rejected},
		{"pass rows with one fail", "| **Pass** | Row 1\n| **Fail** | Row 2", Rejected},
		{"rejection marker without table falls through to approval", "Incorrect claims: none. No issues remain.", Approved},
		{"rejection marker without table or approval", "Needs correction in paragraph 12.", Rejected},
		{"negated rejection marker is skipped", "There is no mismatch. | **Warning** | minor", Rejected},
		{"negated marker with passing rows", "No mismatch detected.\n| **Pass** | Row 1", Approved},
		{"negated marker skips the warning count", "No mismatch found.\n| **Warning** | Row 2 date format; no issues otherwise.", Approved},
		{"same critique without the negation rejects", "Mismatch found.\n| **Warning** | Row 2 date format; no issues otherwise.", Rejected},
		{"fail inside a word still counts as a marker", "Failure to cite. | **Fail** |", Rejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Classify(tt.critique); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.critique, got, tt.want)
			}
		})
	}
}

func TestNegationOnlyMatchesLiteralPrefix(t *testing.T) {
	p := DefaultPolicy()
	// "not a mismatch" is not treated as a negation; the failing row rejects.
	if got := p.Classify("This is not a mismatch. | **Fail** | row"); got != Rejected {
		t.Fatalf("expected rejected, got %s", got)
	}
	// A warning row alone without rejection markers or pass rows is not approval.
	if got := p.Classify("| **Warning** | row"); got != Rejected {
		t.Fatalf("expected rejected, got %s", got)
	}
}

func TestClassifyIsPureAndIdempotent(t *testing.T) {
	p := DefaultPolicy()
	inputs := []string{
		"No issues found.",
		"Error: bad quote | **Fail** |",
		"| **Pass** |",
		"",
	}
	for _, in := range inputs {
		first := p.Classify(in)
		for range 5 {
			if got := p.Classify(in); got != first {
				t.Fatalf("Classify(%q) not stable: %s then %s", in, first, got)
			}
		}
		if got := p.Classify(strings.ToUpper(in)); got != first {
			t.Errorf("Classify is case sensitive for %q", in)
		}
	}
}

func TestPolicyIsSwappable(t *testing.T) {
	p := Policy{
		RejectionMarkers: []string{"reject"},
		ApprovalMarkers:  []string{"lgtm"},
		NegationPrefix:   "not ",
		PassToken:        "[ok]",
		FailToken:        "[bad]",
		WarningToken:     "[meh]",
	}

	if got := p.Classify("LGTM"); got != Approved {
		t.Errorf("expected custom approval marker to approve, got %s", got)
	}
	if got := p.Classify("reject [bad]"); got != Rejected {
		t.Errorf("expected custom rejection to reject, got %s", got)
	}
	if got := p.Classify("[ok] [ok]"); got != Approved {
		t.Errorf("expected custom pass rows to approve, got %s", got)
	}
	if got := p.Classify("No issues"); got != Rejected {
		t.Errorf("default vocabulary must not apply to a custom policy, got %s", got)
	}
}

func TestClassifierFunc(t *testing.T) {
	var c Classifier = ClassifierFunc(func(string) Decision { return Approved })
	if c.Classify("anything") != Approved {
		t.Fatal("expected ClassifierFunc to delegate")
	}
}
