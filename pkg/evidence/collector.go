package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/ruler/pkg/log"
	"github.com/macropower/ruler/pkg/signal"
	"github.com/macropower/ruler/pkg/vcs"
)

// gracePeriod is how long a source may take to return partial results
// after its deadline.
const gracePeriod = 100 * time.Millisecond

// Collector runs sources concurrently.
type Collector struct {
	tracer  trace.Tracer
	sources []Source
	timeout time.Duration
}

// NewCollector creates a [Collector] giving each source at most timeout.
func NewCollector(timeout time.Duration, sources ...Source) *Collector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Collector{
		tracer:  otel.Tracer("github.com/macropower/ruler/pkg/evidence"),
		sources: sources,
		timeout: timeout,
	}
}

// NewDefaultCollector creates a [Collector] with the built-in sources,
// minus those disabled by cfg.
func NewDefaultCollector(cfg *Config, vcsCfg *vcs.Config) (*Collector, error) {
	walker, err := cfg.NewWalker()
	if err != nil {
		return nil, err
	}

	sources := []Source{
		NewManifestScanner(walker),
		NewPatternScanner(walker),
		NewEnvironmentScanner(),
	}

	if !vcsCfg.Disabled {
		git, err := vcs.NewGit(vcsCfg.Command)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

		sources = append(sources, NewHistoryScanner(git, vcsCfg))
	}

	sources = slices.DeleteFunc(sources, func(s Source) bool {
		return slices.Contains(cfg.Disable, s.Name())
	})

	return NewCollector(cfg.Timeout, sources...), nil
}

// Sources returns the names of the configured sources.
func (c *Collector) Sources() []signal.Source {
	names := make([]signal.Source, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}

	return names
}

type sourceResult struct {
	err     error
	signals []signal.Signal
}

// Collect returns the signals of all sources in canonical order.
//
// Source failures never abort collection: the returned error, when non-nil,
// is a [*multierror.Error] describing the sources that failed or timed out,
// and the signals they produced before failing are kept.
func (c *Collector) Collect(ctx context.Context, root string) ([]signal.Signal, error) {
	ctx, span := c.tracer.Start(ctx, "collect evidence",
		trace.WithAttributes(attribute.String("root", root)),
	)
	defer span.End()

	logger := log.WithContext(ctx)
	results := make([]sourceResult, len(c.sources))

	var g errgroup.Group
	for i, src := range c.sources {
		g.Go(func() error {
			results[i] = c.run(ctx, src, root)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // Sources report through results.

	var (
		all  []signal.Signal
		errs *multierror.Error
	)

	for i, r := range results {
		name := c.sources[i].Name()
		all = append(all, r.signals...)

		if r.err != nil {
			logger.Warn("evidence source failed",
				slog.String("source", string(name)),
				slog.Int("signals", len(r.signals)),
				slog.Any("err", r.err),
			)

			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, r.err))
		}
	}

	signal.Sort(all)
	span.SetAttributes(attribute.Int("signals", len(all)))

	if err := errs.ErrorOrNil(); err != nil {
		span.SetStatus(codes.Error, "partial evidence")
		return all, err
	}

	return all, nil
}

// run executes one source under its timeout. A source that ignores its
// context is abandoned after the grace period.
func (c *Collector) run(ctx context.Context, src Source, root string) sourceResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan sourceResult, 1)

	go func() {
		signals, err := src.Collect(ctx, root)
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, c.timeout, err)
		}

		done <- sourceResult{signals: signals, err: err}
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
	}

	select {
	case r := <-done:
		return r

	case <-time.After(gracePeriod):
		return sourceResult{err: fmt.Errorf("%w after %s", ErrTimeout, c.timeout)}
	}
}
