// Package engine runs rule selection as three calls: [Engine.Detect]
// collects and scores evidence, [Engine.Answer] folds in one answer at a
// time, and [Engine.Finalize] produces the [result.Selection].
//
// A [Session] is a plain value threaded through the calls. No call mutates
// the session it is given, so sessions may be shared between goroutines and
// replayed.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/ruler/api/v1beta1/matrices"
	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/evidence"
	"github.com/macropower/ruler/pkg/label"
	"github.com/macropower/ruler/pkg/log"
	"github.com/macropower/ruler/pkg/matrix"
	"github.com/macropower/ruler/pkg/questionnaire"
	"github.com/macropower/ruler/pkg/score"
	"github.com/macropower/ruler/pkg/selector"
	"github.com/macropower/ruler/pkg/signal"
	"github.com/macropower/ruler/pkg/vcs"
)

var (
	ErrUnknownQuestion    = questionnaire.ErrUnknownQuestion
	ErrQuestionNotPending = questionnaire.ErrQuestionNotPending
	ErrInvalidAnswer      = questionnaire.ErrInvalidAnswer
	ErrLabelConflict      = label.ErrLabelConflict
)

// Collector gathers signals for a project root.
type Collector interface {
	Collect(ctx context.Context, root string) ([]signal.Signal, error)
}

// Engine holds the compiled pipeline. It is safe for concurrent use.
type Engine struct {
	registry     *attr.Registry
	collector    Collector
	scorer       *score.Scorer
	orchestrator *questionnaire.Orchestrator
	selector     *selector.Selector
	resolver     *label.Resolver
	recommender  *label.Recommender
	tracer       trace.Tracer
}

type options struct {
	registry    *attr.Registry
	collector   Collector
	scorer      *score.Scorer
	matrix      *matrix.Matrix
	plan        *questionnaire.Plan
	labelConfig *label.Config
}

// Opt configures an [Engine].
type Opt func(*options)

// WithRegistry replaces the built-in attributes.
func WithRegistry(reg *attr.Registry) Opt {
	return func(o *options) { o.registry = reg }
}

// WithCollector replaces the built-in evidence sources.
func WithCollector(c Collector) Opt {
	return func(o *options) { o.collector = c }
}

// WithScorer replaces the default scorer.
func WithScorer(s *score.Scorer) Opt {
	return func(o *options) { o.scorer = s }
}

// WithMatrix replaces the built-in matrix. It must be compiled against the
// engine's registry.
func WithMatrix(m *matrix.Matrix) Opt {
	return func(o *options) { o.matrix = m }
}

// WithPlan replaces the built-in questionnaire plan.
func WithPlan(p questionnaire.Plan) Opt {
	return func(o *options) { o.plan = &p }
}

// WithLabels configures label precedence and recommendations.
func WithLabels(cfg *label.Config) Opt {
	return func(o *options) { o.labelConfig = cfg }
}

// New creates an [Engine]. Unset components use their defaults.
func New(opts ...Opt) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.registry == nil {
		o.registry = attr.Default()
	}

	if o.collector == nil {
		c, err := evidence.NewDefaultCollector(evidence.NewConfig(), vcs.NewConfig())
		if err != nil {
			return nil, fmt.Errorf("create collector: %w", err)
		}

		o.collector = c
	}

	if o.scorer == nil {
		s, err := score.New()
		if err != nil {
			return nil, fmt.Errorf("create scorer: %w", err)
		}

		o.scorer = s
	}

	if o.matrix == nil {
		def, err := matrices.Default()
		if err != nil {
			return nil, fmt.Errorf("load default matrix: %w", err)
		}

		o.matrix, err = def.Compile(o.registry)
		if err != nil {
			return nil, err //nolint:wrapcheck // Already wrapped.
		}
	}

	var qopts []questionnaire.Opt
	if o.plan != nil {
		qopts = append(qopts, questionnaire.WithPlan(*o.plan))
	}

	orch, err := questionnaire.New(o.registry, qopts...)
	if err != nil {
		return nil, fmt.Errorf("create questionnaire: %w", err)
	}

	if o.labelConfig == nil {
		o.labelConfig = label.NewConfig()
	}

	res, rec, err := o.labelConfig.New(o.registry)
	if err != nil {
		return nil, fmt.Errorf("create labels: %w", err)
	}

	return &Engine{
		registry:     o.registry,
		collector:    o.collector,
		scorer:       o.scorer,
		orchestrator: orch,
		selector:     selector.New(o.registry, o.matrix),
		resolver:     res,
		recommender:  rec,
		tracer:       otel.Tracer("github.com/macropower/ruler/pkg/engine"),
	}, nil
}

// Registry returns the attributes the engine resolves.
func (e *Engine) Registry() *attr.Registry {
	return e.registry
}

// DetectOpt configures one [Engine.Detect] call.
type DetectOpt func(*detectOptions)

type detectOptions struct {
	answers map[string]attr.Value
	current map[string]attr.Value
}

// WithAnswers pre-answers questions. Pre-answered attributes are never
// asked.
func WithAnswers(answers map[string]attr.Value) DetectOpt {
	return func(o *detectOptions) { o.answers = answers }
}

// WithCurrent supplies previously agreed values, labeled "current".
func WithCurrent(current map[string]attr.Value) DetectOpt {
	return func(o *detectOptions) { o.current = current }
}

// Detect collects and scores evidence for root and returns the first
// questionnaire step. Unreadable or slow sources only reduce the evidence;
// they are reported in [Session.Warnings].
func (e *Engine) Detect(ctx context.Context, root string, opts ...DetectOpt) (Session, error) {
	ctx, span := e.tracer.Start(ctx, "detect", trace.WithAttributes(attribute.String("root", root)))
	defer span.End()

	o := &detectOptions{}
	for _, opt := range opts {
		opt(o)
	}

	logger := log.WithContext(ctx).With(slog.String("root", root))

	s := Session{Root: root}

	current, err := e.checkValues("current", o.current)
	if err != nil {
		return Session{}, err
	}

	s.Current = current

	pre, err := e.checkValues("answers", o.answers)
	if err != nil {
		return Session{}, err
	}

	for _, name := range slices.Sorted(maps.Keys(pre)) {
		s.State.Answers = append(s.State.Answers, questionnaire.Answer{
			QuestionID: name,
			Attribute:  name,
			Values:     pre[name],
		})
	}

	signals, err := e.collector.Collect(ctx, root)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Session{}, fmt.Errorf("detect: %w", ctxErr)
	}

	if err != nil {
		logger.Warn("evidence is incomplete", slog.Any("err", err))

		s.Warnings = append(s.Warnings, err.Error())
	}

	signals = e.filter(ctx, signals)
	s.State.Resolutions = score.Index(e.scorer.Score(signals))

	logger.Debug("scored evidence",
		slog.Int("signals", len(signals)),
		slog.Int("resolved", len(s.State.Resolutions)),
	)

	return e.advance(s), nil
}

// filter drops signals for unknown attributes or values outside the domain.
func (e *Engine) filter(ctx context.Context, signals []signal.Signal) []signal.Signal {
	logger := log.WithContext(ctx)

	return slices.DeleteFunc(slices.Clone(signals), func(sig signal.Signal) bool {
		a, ok := e.registry.Get(sig.Attribute)
		if ok && a.Allows(sig.Value) {
			return false
		}

		logger.Debug("dropping signal outside the attribute domain",
			slog.String("attribute", sig.Attribute),
			slog.String("value", sig.Value),
			slog.String("source", string(sig.Source)),
		)

		return true
	})
}

func (e *Engine) checkValues(field string, values map[string]attr.Value) (map[string]attr.Value, error) {
	out := make(map[string]attr.Value, len(values))

	for _, name := range slices.Sorted(maps.Keys(values)) {
		a, err := e.registry.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidAnswer, field, err)
		}

		if a.Kind == attr.KindSystem {
			return nil, fmt.Errorf("%w: %s: %s is detected from the environment", ErrInvalidAnswer, field, name)
		}

		v := slices.Clone(values[name])
		slices.SortFunc(v, func(x, y string) int { return a.Rank(x) - a.Rank(y) })
		v = slices.Compact(v)

		err = a.Check(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidAnswer, field, err)
		}

		if len(v) > 1 && slices.Contains(v, attr.None) {
			return nil, fmt.Errorf("%w: %s: %s cannot be combined with other values", ErrInvalidAnswer, field, attr.None)
		}

		if len(v) > 0 {
			out[name] = attr.Value(v)
		}
	}

	return out, nil
}

// Answer validates an answer to a pending question and returns the
// advanced session. Empty values skip the question. s is not modified.
func (e *Engine) Answer(s Session, questionID string, values ...string) (Session, error) {
	ans, err := e.orchestrator.Validate(s.Step, questionnaire.Answer{
		QuestionID: questionID,
		Values:     values,
	})
	if err != nil {
		return Session{}, err //nolint:wrapcheck // Sentinel errors are re-exported.
	}

	next := s.clone()
	next.State.Answers = append(next.State.Answers, ans)

	return e.advance(next), nil
}

// Skip skips every pending question of the current tier.
func (e *Engine) Skip(s Session) (Session, error) {
	next := s

	for _, q := range s.Step.Questions {
		var err error

		next, err = e.Answer(next, q.ID)
		if err != nil {
			return Session{}, err
		}
	}

	return next, nil
}

// advance recomputes the step and profile of s.
func (e *Engine) advance(s Session) Session {
	s.Step = e.orchestrator.Next(s.State)
	s.Profile = e.profile(s)

	values := e.orchestrator.Effective(s.State)

	for i, q := range s.Step.Questions {
		kinds := e.optionLabels(q.Attribute, s, values)
		for j, opt := range q.Options {
			if k, ok := kinds[opt.Value]; ok {
				s.Step.Questions[i].Options[j].Label = string(k)
			}
		}
	}

	return s
}

func (e *Engine) profile(s Session) map[string]attr.Value {
	values := e.orchestrator.Effective(s.State)

	out := make(map[string]attr.Value, len(e.registry.Names()))
	for _, name := range e.registry.Names() {
		out[name] = values(name)
	}

	return out
}

// optionLabels marks the options of attribute proposed as current,
// detected or recommended, keeping the strongest kind per value.
func (e *Engine) optionLabels(attribute string, s Session, values questionnaire.Values) map[string]label.Kind {
	detected := ""
	if r, ok := s.State.Resolutions[attribute]; ok {
		detected = r.Value
	}

	recommended := e.recommender.Recommend(attribute, values)

	current := s.Current[attribute]
	if len(current) == 0 {
		current = attr.Value{""}
	}

	rank := func(k label.Kind) int { return slices.Index(e.resolver.Precedence(), k) }

	out := map[string]label.Kind{}

	for _, cur := range current {
		kinds := e.resolver.OptionLabels(label.Candidates{
			Current:     cur,
			Detected:    detected,
			Recommended: recommended,
		})

		for v, k := range kinds {
			if prev, ok := out[v]; !ok || rank(k) < rank(prev) {
				out[v] = k
			}
		}
	}

	return out
}
