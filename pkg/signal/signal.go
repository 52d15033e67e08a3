// Package signal defines the raw evidence records produced by evidence
// sources.
package signal

import (
	"cmp"
	"slices"
	"strings"
)

// Source identifies where a signal, or a resolved value, came from.
type Source string

const (
	Manifest    Source = "manifest"
	CodePattern Source = "code-pattern"
	VCSHistory  Source = "vcs-history"
	Environment Source = "environment"
	UserAnswer  Source = "user-answer"
	// Default marks values substituted because nothing else was available.
	Default Source = "default"
)

// EvidenceSources are the sources produced by scanners, in collection order.
var EvidenceSources = []Source{Manifest, CodePattern, VCSHistory, Environment}

// Signal is a single piece of evidence about one attribute value. Signals
// are immutable once created; use [New] to build them.
type Signal struct {
	Attribute     string   `json:"attribute"`
	Value         string   `json:"value"`
	Source        Source   `json:"source"`
	Evidence      []string `json:"evidence,omitempty"`
	RawConfidence float64  `json:"rawConfidence"`
}

// New creates a [Signal]. The confidence is clamped to [0, 1].
func New(attribute, value string, source Source, confidence float64, evidence ...string) Signal {
	return Signal{
		Attribute:     attribute,
		Value:         value,
		Source:        source,
		Evidence:      slices.Clone(evidence),
		RawConfidence: Clamp(confidence),
	}
}

// Clamp limits c to [0, 1].
func Clamp(c float64) float64 {
	return min(max(c, 0), 1)
}

// Compare orders signals by attribute, value, source, descending confidence
// and finally evidence.
func Compare(a, b Signal) int {
	return cmp.Or(
		cmp.Compare(a.Attribute, b.Attribute),
		cmp.Compare(a.Value, b.Value),
		cmp.Compare(a.Source, b.Source),
		cmp.Compare(b.RawConfidence, a.RawConfidence),
		cmp.Compare(strings.Join(a.Evidence, "\n"), strings.Join(b.Evidence, "\n")),
	)
}

// Sort sorts signals in place with [Compare].
func Sort(signals []Signal) {
	slices.SortStableFunc(signals, Compare)
}
