// Package issue defines the uniform finding model shared by every
// detector in shellaudit.
package issue

import "fmt"

// Severity ranks how urgent a finding is.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	default:
		return "info"
	}
}

// Location points at the source position of a finding.
// Line and Column are 1-based.
type Location struct {
	File   string
	Line   uint32
	Column uint32
}

// String formats the location as file:line:col.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Issue is a single finding produced by a detector. Values are
// immutable once produced; detectors return fresh slices.
type Issue struct {
	// Rule names the check that fired, e.g. "UnreachableCode".
	Rule string
	// Category is the taxonomy classification: an OWASP code
	// ("A03:2021"), a MITRE technique ID ("T1059.004"), or empty for
	// non-security findings.
	Category string
	Severity Severity
	// Description is the human-readable explanation, including the
	// offending name where the rule concerns one.
	Description string
	// Location is nil when the finding has no single source position.
	Location *Location
}

// ComplexityResult reports the cognitive complexity of one scope.
type ComplexityResult struct {
	// Scope is the function name, or "<script>" for top-level
	// statements outside any function.
	Scope string
	Score int
	// Factors breaks the score down by contributing construct,
	// e.g. {"branches": 3, "loops": 1, "nesting": 4}. May be nil.
	Factors map[string]int
}
