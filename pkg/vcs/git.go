package vcs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/ruler/pkg/execs"
	"github.com/macropower/ruler/pkg/log"
)

const fieldSeparator = "\x1f"

// Git reads history by running a log command.
type Git struct {
	tracer trace.Tracer
	exec   execs.Executor
}

// NewGit creates a [Git] for the given command line, which must print one
// commit per line as hash, author and unix timestamp separated by 0x1f.
func NewGit(command string) (*Git, error) {
	if command == "" {
		command = DefaultCommand
	}

	cmd, err := execs.Parse(command)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already descriptive.
	}

	return &Git{
		tracer: otel.Tracer("github.com/macropower/ruler/pkg/vcs"),
		exec:   execs.NewExecutor(cmd),
	}, nil
}

// Log runs the log command in root.
func (g *Git) Log(ctx context.Context, root string, q Query) ([]Commit, error) {
	ctx, span := g.tracer.Start(ctx, "vcs.log", trace.WithAttributes(
		attribute.String("path", root),
	))
	defer span.End()

	var args []string
	if !q.Since.IsZero() {
		args = append(args, "--since="+q.Since.UTC().Format(time.RFC3339))
	}

	if q.Limit > 0 {
		args = append(args, "--max-count="+strconv.Itoa(q.Limit))
	}

	res, err := g.exec.Exec(ctx, root, args...)
	if err != nil {
		if isNoRepository(res, err) {
			return nil, fmt.Errorf("%s: %w", root, ErrNoRepository)
		}

		return nil, fmt.Errorf("read history: %w", err)
	}

	commits, skipped := parseLog(res.Stdout)
	if skipped > 0 {
		log.WithContext(ctx).Debug("skipped malformed log lines", slog.Int("count", skipped))
	}

	span.SetAttributes(attribute.Int("commits", len(commits)))

	if q.Limit > 0 && len(commits) > q.Limit {
		commits = commits[:q.Limit]
	}

	return commits, nil
}

func isNoRepository(res *execs.Result, err error) bool {
	if errors.Is(err, execs.ErrCommandNotFound) {
		return false
	}

	if res == nil {
		return false
	}

	stderr := strings.ToLower(res.Stderr)

	return strings.Contains(stderr, "not a git repository") ||
		strings.Contains(stderr, "does not have any commits")
}

func parseLog(out string) ([]Commit, int) {
	var (
		commits []Commit
		skipped int
	)

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, fieldSeparator)
		if len(fields) != 3 {
			skipped++
			continue
		}

		unix, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			skipped++
			continue
		}

		commits = append(commits, Commit{
			Hash:      fields[0],
			Author:    strings.ToLower(fields[1]),
			Timestamp: time.Unix(unix, 0).UTC(),
		})
	}

	return commits, skipped
}
