// Package score collapses conflicting signals into one value per attribute.
//
// For each attribute, every candidate value accumulates the sum of
// weight(source) × rawConfidence over its signals, clamped to [0, 1]. The
// highest aggregate wins. Ties prefer the candidate backed by more distinct
// evidence strings, then the alphabetically first value.
package score

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/macropower/ruler/pkg/signal"
)

// DefaultThreshold is the confidence below which a resolution needs
// confirmation.
const DefaultThreshold = 0.7

// ErrInvalidWeight is returned for weights outside [0, 1].
var ErrInvalidWeight = errors.New("invalid weight")

// Weights maps each source to the multiplier applied to its signals.
type Weights map[signal.Source]float64

// DefaultWeights returns the built-in source weights.
func DefaultWeights() Weights {
	return Weights{
		signal.Manifest:    1.0,
		signal.CodePattern: 0.6,
		signal.VCSHistory:  0.5,
		signal.Environment: 0.3,
		signal.UserAnswer:  1.0,
	}
}

// Validate checks that every weight is within [0, 1].
func (w Weights) Validate() error {
	for _, src := range slices.Sorted(maps.Keys(w)) {
		if v := w[src]; v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidWeight, src, v)
		}
	}

	return nil
}

// Candidate is one value considered for an attribute.
type Candidate struct {
	Value      string          `json:"value"`
	Sources    []signal.Source `json:"sources"`
	Evidence   []string        `json:"evidence,omitempty"`
	Confidence float64         `json:"confidence"`
}

// Resolution is the outcome of scoring one attribute.
type Resolution struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
	// Source contributed the largest weighted share to the winning value.
	Source   signal.Source `json:"source"`
	Evidence []string      `json:"evidence,omitempty"`
	// Alternatives are the losing candidates, best first.
	Alternatives      []Candidate `json:"alternatives,omitempty"`
	Confidence        float64     `json:"confidence"`
	NeedsConfirmation bool        `json:"needsConfirmation"`
}

// Scorer resolves signals using source weights and a confirmation threshold.
type Scorer struct {
	weights   Weights
	threshold float64
}

// Opt configures a [Scorer].
type Opt func(*Scorer)

// WithWeights overrides the weights of the given sources.
func WithWeights(w Weights) Opt {
	return func(s *Scorer) {
		maps.Copy(s.weights, w)
	}
}

// WithThreshold sets the confirmation threshold.
func WithThreshold(threshold float64) Opt {
	return func(s *Scorer) {
		s.threshold = threshold
	}
}

// New creates a [Scorer].
func New(opts ...Opt) (*Scorer, error) {
	s := &Scorer{
		weights:   DefaultWeights(),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}

	err := s.weights.Validate()
	if err != nil {
		return nil, err
	}

	if s.threshold < 0 || s.threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v", ErrInvalidWeight, s.threshold)
	}

	return s, nil
}

// Threshold returns the confirmation threshold.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Weight returns the weight of src. Unknown sources weigh zero.
func (s *Scorer) Weight(src signal.Source) float64 {
	return s.weights[src]
}

type tally struct {
	shares   map[signal.Source]float64
	evidence map[string]bool
	value    string
	total    float64
}

func (t *tally) candidate() Candidate {
	return Candidate{
		Value:      t.value,
		Sources:    slices.Sorted(maps.Keys(t.shares)),
		Evidence:   slices.Sorted(maps.Keys(t.evidence)),
		Confidence: signal.Clamp(t.total),
	}
}

// strongest returns the source with the largest share, breaking ties by
// source name.
func (t *tally) strongest() signal.Source {
	var (
		best  signal.Source
		share = -1.0
	)

	for _, src := range slices.Sorted(maps.Keys(t.shares)) {
		if t.shares[src] > share {
			best, share = src, t.shares[src]
		}
	}

	return best
}

func compareTallies(a, b *tally) int {
	return cmp.Or(
		cmp.Compare(signal.Clamp(b.total), signal.Clamp(a.total)),
		cmp.Compare(len(b.evidence), len(a.evidence)),
		cmp.Compare(a.value, b.value),
	)
}

// Resolve scores the signals of a single attribute. It returns false when
// signals holds nothing for attribute.
func (s *Scorer) Resolve(attribute string, signals []signal.Signal) (Resolution, bool) {
	tallies := map[string]*tally{}

	for _, sig := range signals {
		if sig.Attribute != attribute {
			continue
		}

		t, ok := tallies[sig.Value]
		if !ok {
			t = &tally{
				value:    sig.Value,
				shares:   map[signal.Source]float64{},
				evidence: map[string]bool{},
			}
			tallies[sig.Value] = t
		}

		weighted := s.weights[sig.Source] * sig.RawConfidence
		t.total += weighted
		t.shares[sig.Source] += weighted

		for _, e := range sig.Evidence {
			t.evidence[e] = true
		}
	}

	if len(tallies) == 0 {
		return Resolution{}, false
	}

	ranked := slices.SortedFunc(maps.Values(tallies), compareTallies)
	winner := ranked[0].candidate()

	res := Resolution{
		Attribute:         attribute,
		Value:             winner.Value,
		Confidence:        winner.Confidence,
		Source:            ranked[0].strongest(),
		Evidence:          winner.Evidence,
		NeedsConfirmation: winner.Confidence < s.threshold,
	}

	for _, t := range ranked[1:] {
		res.Alternatives = append(res.Alternatives, t.candidate())
	}

	return res, true
}

// Score resolves every attribute that has at least one signal. Resolutions
// are sorted by attribute.
func (s *Scorer) Score(signals []signal.Signal) []Resolution {
	seen := map[string]bool{}
	for _, sig := range signals {
		seen[sig.Attribute] = true
	}

	names := slices.Collect(maps.Keys(seen))
	sort.Strings(names)

	out := make([]Resolution, 0, len(names))

	for _, name := range names {
		res, _ := s.Resolve(name, signals)
		out = append(out, res)
	}

	return out
}

// Index maps resolutions by attribute.
func Index(resolutions []Resolution) map[string]Resolution {
	out := make(map[string]Resolution, len(resolutions))
	for _, r := range resolutions {
		out[r.Attribute] = r
	}

	return out
}

// ConfidenceOf returns the confidence of value, whether it won or not.
func (r Resolution) ConfidenceOf(value string) float64 {
	if r.Value == value {
		return r.Confidence
	}

	for _, alt := range r.Alternatives {
		if alt.Value == value {
			return alt.Confidence
		}
	}

	return 0
}
