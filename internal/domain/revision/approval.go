package revision

import "strings"

// Decision is the binary verdict on a critique.
type Decision bool

const (
	Rejected Decision = false
	Approved Decision = true
)

func (d Decision) String() string {
	if d {
		return "approved"
	}
	return "rejected"
}

// Classifier turns free-form critique text into a Decision.
type Classifier interface {
	Classify(critique string) Decision
}

// Policy is a data-driven Classifier. Matching is case-insensitive substring
// search; the marker order only affects which rejection marker triggers the
// table check first.
type Policy struct {
	RejectionMarkers []string
	ApprovalMarkers  []string
	// NegationPrefix, prepended to a rejection marker, cancels it ("no errors").
	NegationPrefix string
	PassToken      string
	FailToken      string
	WarningToken   string
}

// DefaultPolicy returns the stock audit vocabulary.
func DefaultPolicy() Policy {
	return Policy{
		RejectionMarkers: []string{
			"fail",
			"error:",
			"hallucination:",
			"citation error",
			"quote error",
			"attribution error",
			"warning:",
			"needs correction",
			"incorrect",
			"mismatch",
		},
		ApprovalMarkers: []string{
			"no issues",
			"no discrepancies",
			"all correct",
			"chart is correct",
			"passes all checks",
			"no errors found",
			"highly accurate",
			"is accurate",
			"all pass",
			"no hallucinations",
			"no errors",
			"verified that every entry is accurate",
		},
		NegationPrefix: "no ",
		PassToken:      "| **pass**",
		FailToken:      "| **fail**",
		WarningToken:   "| **warning**",
	}
}

// Classify implements Classifier.
//
// A non-negated rejection marker rejects only when the critique also contains
// failing or warning table rows. Otherwise, at least one passing row with no
// failing or warning rows approves. Otherwise the approval markers decide.
// Empty input is rejected.
func (p Policy) Classify(critique string) Decision {
	lower := strings.ToLower(critique)

	fails := strings.Count(lower, p.FailToken)
	warnings := strings.Count(lower, p.WarningToken)

	for _, m := range p.RejectionMarkers {
		if !strings.Contains(lower, m) || strings.Contains(lower, p.NegationPrefix+m) {
			continue
		}
		if fails > 0 || warnings > 0 {
			return Rejected
		}
	}

	if strings.Contains(lower, p.PassToken) && fails == 0 && warnings == 0 {
		return Approved
	}

	for _, m := range p.ApprovalMarkers {
		if strings.Contains(lower, m) {
			return Approved
		}
	}
	return Rejected
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(critique string) Decision

// Classify implements Classifier.
func (f ClassifierFunc) Classify(critique string) Decision { return f(critique) }
