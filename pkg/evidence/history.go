package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/log"
	"github.com/macropower/ruler/pkg/signal"
	"github.com/macropower/ruler/pkg/vcs"
)

// historySaturation is the commit count at which history confidence
// stops growing.
const historySaturation = 50

// HistoryScanner derives team size and activity from commit metadata.
type HistoryScanner struct {
	log      vcs.Log
	now      func() time.Time
	lookback time.Duration
	limit    int
}

// HistoryOpt configures a [HistoryScanner].
type HistoryOpt func(*HistoryScanner)

// WithClock sets the time source used to compute the lookback window.
func WithClock(now func() time.Time) HistoryOpt {
	return func(s *HistoryScanner) {
		s.now = now
	}
}

// NewHistoryScanner creates a [HistoryScanner] reading from l.
func NewHistoryScanner(l vcs.Log, cfg *vcs.Config, opts ...HistoryOpt) *HistoryScanner {
	s := &HistoryScanner{
		log:      l,
		now:      time.Now,
		lookback: cfg.Lookback,
		limit:    cfg.MaxCommits,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name implements [Source].
func (s *HistoryScanner) Name() signal.Source {
	return signal.VCSHistory
}

// Collect implements [Source]. Projects without a repository produce no
// signals and no error.
func (s *HistoryScanner) Collect(ctx context.Context, root string) ([]signal.Signal, error) {
	commits, err := s.log.Log(ctx, root, vcs.Query{
		Since: s.now().Add(-s.lookback),
		Limit: s.limit,
	})
	if errors.Is(err, vcs.ErrNoRepository) {
		log.WithContext(ctx).Debug("no repository", slog.String("root", root))
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if len(commits) == 0 {
		return nil, nil
	}

	stats := vcs.Summarize(commits, s.lookback)
	conf := roundConfidence(0.3 + 0.3*float64(min(stats.Commits, historySaturation))/historySaturation)
	days := int(s.lookback.Hours() / 24)

	set := newSignalSet(signal.VCSHistory, maxEvidence)
	set.add(
		hint{attr.Team, teamSize(stats.Authors), conf},
		fmt.Sprintf("%d distinct authors in the last %d days", stats.Authors, days),
	)
	set.add(
		hint{attr.Activity, activity(stats.PerWeek), conf},
		fmt.Sprintf("%d commits in the last %d days (%.1f per week)", stats.Commits, days, stats.PerWeek),
	)

	return set.list(), nil
}

func teamSize(authors int) string {
	switch {
	case authors <= 1:
		return "solo"
	case authors <= 5:
		return "small"
	}

	return "large"
}

func activity(perWeek float64) string {
	switch {
	case perWeek >= 5:
		return "active"
	case perWeek >= 0.5:
		return "occasional"
	}

	return "dormant"
}
