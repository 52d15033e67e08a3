package evidence

import (
	"context"
	"errors"
	"slices"

	"github.com/macropower/ruler/pkg/signal"
)

var (
	// ErrUnavailable wraps failures of a source to produce evidence. It is
	// logged and treated as an empty result.
	ErrUnavailable = errors.New("evidence unavailable")

	// ErrTimeout is returned when a source exceeds its time budget.
	ErrTimeout = errors.New("source timed out")
)

// Source produces signals for a project root.
//
// Implementations must be read-only. They may return signals together with
// an error, in which case the signals are kept as partial evidence.
type Source interface {
	Name() signal.Source
	Collect(ctx context.Context, root string) ([]signal.Signal, error)
}

// hint is a signal template.
type hint struct {
	attribute  string
	value      string
	confidence float64
}

type signalKey struct {
	attribute string
	value     string
}

// signalSet accumulates signals, merging repeated hints so a value is
// reported once per source with the highest confidence seen.
type signalSet struct {
	index   map[signalKey]int
	source  signal.Source
	signals []signal.Signal
	// maxEvidence bounds the evidence strings kept per signal.
	maxEvidence int
}

func newSignalSet(source signal.Source, maxEvidence int) *signalSet {
	return &signalSet{
		source:      source,
		index:       map[signalKey]int{},
		maxEvidence: maxEvidence,
	}
}

func (s *signalSet) add(h hint, evidence string) {
	key := signalKey{h.attribute, h.value}

	i, ok := s.index[key]
	if !ok {
		s.index[key] = len(s.signals)
		s.signals = append(s.signals, signal.New(h.attribute, h.value, s.source, h.confidence, evidence))

		return
	}

	sig := s.signals[i]
	sig.RawConfidence = max(sig.RawConfidence, signal.Clamp(h.confidence))

	if len(sig.Evidence) < s.maxEvidence && !slices.Contains(sig.Evidence, evidence) {
		sig.Evidence = append(sig.Evidence, evidence)
	}

	s.signals[i] = sig
}

func (s *signalSet) list() []signal.Signal {
	out := make([]signal.Signal, len(s.signals))
	copy(out, s.signals)
	signal.Sort(out)

	return out
}
