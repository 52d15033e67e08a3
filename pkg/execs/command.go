package execs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/ruler/pkg/log"
)

var (
	// ErrCommandExecution is returned when command execution fails.
	ErrCommandExecution = errors.New("run")

	// ErrEmptyCommand is returned when a command is empty.
	ErrEmptyCommand = errors.New("empty command")

	// ErrCommandNotFound is returned when the executable is not installed.
	ErrCommandNotFound = errors.New("command not found")
)

// Environment variables passed through to commands.
var essentialVars = []string{"PATH", "HOME", "USER", "TMPDIR", "SYSTEMROOT", "XDG_CONFIG_HOME"}

// Result represents the result of a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Command is an executable and its arguments.
type Command struct {
	Command string
	Args    []string
}

// Parse splits a shell-style command line into a [Command].
func Parse(line string) (Command, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return Command{}, fmt.Errorf("parse command %q: %w", line, err)
	}

	if len(words) == 0 {
		return Command{}, ErrEmptyCommand
	}

	return Command{Command: words[0], Args: words[1:]}, nil
}

func (c Command) String() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}

// Executor runs a [Command] under a trace span.
type Executor struct {
	tracer  trace.Tracer
	baseEnv []string
	cmd     Command
}

// NewExecutor creates an [Executor] for cmd. The command's environment is
// limited to a small set of variables inherited from the current process.
func NewExecutor(cmd Command) Executor {
	env := []string{"LC_ALL=C"}

	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if slices.Contains(essentialVars, key) {
			env = append(env, kv)
		}
	}

	return Executor{
		tracer:  otel.Tracer("github.com/macropower/ruler/pkg/execs"),
		cmd:     cmd,
		baseEnv: env,
	}
}

func (e Executor) String() string {
	return e.cmd.String()
}

// Exec runs the command in dir with extraArgs appended.
func (e Executor) Exec(ctx context.Context, dir string, extraArgs ...string) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "exec", trace.WithAttributes(
		attribute.String("command", e.String()),
		attribute.String("path", dir),
	))
	defer span.End()

	if e.cmd.Command == "" {
		return nil, ErrEmptyCommand
	}

	logger := log.WithContext(ctx).With(
		slog.String("command", e.String()),
		slog.String("path", dir),
	)

	start := time.Now()
	args := slices.Concat(e.cmd.Args, extraArgs)

	//nolint:gosec // G204: Subprocess launched with a potential tainted input or cmd arguments.
	cmd := exec.CommandContext(ctx, e.cmd.Command, args...)
	cmd.Dir = dir
	cmd.Env = e.baseEnv

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "command failed")

		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, e.cmd.Command)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}

		logger.DebugContext(ctx, "command failed",
			slog.Duration("duration", time.Since(start)),
			slog.Int("exit_code", result.ExitCode),
		)

		return result, fmt.Errorf("%w: %w: %s", ErrCommandExecution, err, strings.TrimSpace(result.Stderr))
	}

	logger.DebugContext(ctx, "command executed successfully",
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}
