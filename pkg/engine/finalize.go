package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/label"
	"github.com/macropower/ruler/pkg/log"
	"github.com/macropower/ruler/pkg/result"
	"github.com/macropower/ruler/pkg/score"
	"github.com/macropower/ruler/pkg/signal"
)

// Finalize resolves every attribute of s and selects the rules. Questions
// still pending are treated as skipped: their attributes keep the detected
// value or fall back to the default.
func (e *Engine) Finalize(ctx context.Context, s Session) (*result.Selection, error) {
	ctx, span := e.tracer.Start(ctx, "finalize", trace.WithAttributes(attribute.String("root", s.Root)))
	defer span.End()

	logger := log.WithContext(ctx)

	if !s.Done() {
		logger.Debug("finalizing with pending questions", slog.Int("pending", len(s.Pending())))
	}

	entries := make([]result.Entry, 0, len(e.registry.Names()))
	profile := make(map[string][]string, len(e.registry.Names()))

	for _, name := range e.registry.Names() {
		entry := e.entry(name, s)
		entries = append(entries, entry)
		profile[name] = entry.Value
	}

	set := attr.NewSet(profile)
	sel := e.selector.Select(ctx, set)

	values := func(name string) attr.Value {
		v, _ := set.Get(name)
		return v
	}

	candidates := make(map[string]label.Candidates, len(entries))
	for _, entry := range entries {
		c := label.Candidates{
			Current:     s.Current[entry.Attribute].String(),
			Recommended: e.recommender.Recommend(entry.Attribute, values),
		}
		if !entry.Defaulted() {
			c.Detected = entry.Value.String()
		}

		candidates[entry.Attribute] = c
	}

	labels, err := e.resolver.ResolveAll(candidates)
	if err != nil {
		return nil, fmt.Errorf("label profile: %w", err)
	}

	out, err := result.Assemble(result.Input{
		Root:      s.Root,
		Entries:   entries,
		Selection: sel,
		Labels:    labels,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble result: %w", err)
	}

	logger.Debug("finalized selection",
		slog.Int("rules", len(out.SelectedRules)),
		slog.Int("categories", len(out.Categories)),
		slog.String("fingerprint", out.Fingerprint),
	)

	return out, nil
}

// entry resolves one attribute: an answer wins, then the scored resolution,
// then the default.
func (e *Engine) entry(name string, s Session) result.Entry {
	r, resolved := s.State.Resolutions[name]

	if ans, ok := s.State.Answer(name); ok && !ans.Skipped() {
		entry := result.Entry{
			Attribute:  name,
			Value:      slices.Clone(attr.Value(ans.Values)),
			Source:     signal.UserAnswer,
			Confidence: 1,
			Evidence:   []string{"answered " + ans.QuestionID},
		}
		if resolved {
			entry.Alternatives = rejected(r, entry.Value)
		}

		return entry
	}

	if resolved {
		return result.Entry{
			Attribute:         name,
			Value:             attr.Value{r.Value},
			Source:            r.Source,
			Confidence:        r.Confidence,
			Evidence:          slices.Clone(r.Evidence),
			Alternatives:      slices.Clone(r.Alternatives),
			NeedsConfirmation: r.NeedsConfirmation,
		}
	}

	a, _ := e.registry.Get(name)

	return result.Entry{
		Attribute: name,
		Value:     attr.Value{a.Default},
		Source:    signal.Default,
	}
}

// rejected lists the scored candidates of r that the answer overrode.
func rejected(r score.Resolution, answered attr.Value) []score.Candidate {
	all := append([]score.Candidate{{
		Value:      r.Value,
		Sources:    []signal.Source{r.Source},
		Evidence:   slices.Clone(r.Evidence),
		Confidence: r.Confidence,
	}}, r.Alternatives...)

	out := slices.DeleteFunc(slices.Clone(all), func(c score.Candidate) bool {
		return answered.Has(c.Value)
	})
	if len(out) == 0 {
		return nil
	}

	return out
}
