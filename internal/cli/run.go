package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/macropower/ruler/api"
	"github.com/macropower/ruler/api/v1beta1/configs"
	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/engine"
	"github.com/macropower/ruler/pkg/log"
	"github.com/macropower/ruler/pkg/report"
	"github.com/macropower/ruler/pkg/result"
	"github.com/macropower/ruler/pkg/watch"
)

const (
	cmdExamples = `  # Select rules for the current directory, asking what detection missed:
  ruler

  # Select rules for a path without asking, writing the result to a file:
  ruler ./services/api --no-input -o rules.json

  # Answer questions up front:
  ruler -a scale=medium -a database=postgres

  # Show what changed since the last run:
  ruler -o rules.json --diff

  # Re-select whenever the project changes:
  ruler --watch

  # Show detection results and pending questions:
  ruler detect ./services/api`
)

type RunArgs struct {
	*RootArgs

	Path        string
	ConfigPath  string
	Output      string
	Previous    string
	Format      string
	Theme       string
	Answers     []string
	NoInput     bool
	Diff        bool
	Watch       bool
	Copy        bool
	WriteConfig bool
	ShowConfig  bool
}

func NewRunArgs(rootArgs *RootArgs) *RunArgs {
	return &RunArgs{
		RootArgs: rootArgs,
	}
}

func (ra *RunArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ra.ConfigPath, "config", "", "Path to the ruler configuration file")
	cmd.Flags().StringArrayVarP(&ra.Answers, "answer", "a", nil,
		"Answer a question as attribute=value[,value], may be repeated")
	cmd.Flags().BoolVar(&ra.NoInput, "no-input", false, "Never prompt, skipping every question")
	cmd.Flags().StringVarP(&ra.Output, "output", "o", "", "Write the selection as JSON to this file")
	cmd.Flags().StringVarP(&ra.Format, "format", "f", string(report.FormatText),
		fmt.Sprintf("Report format, one of: %s", report.AllFormats))
	cmd.Flags().BoolVar(&ra.Diff, "diff", false, "Show the difference to the previous selection")
	cmd.Flags().StringVar(&ra.Previous, "previous", "",
		"Previous selection to compare against, defaults to --output")
	cmd.Flags().BoolVarP(&ra.Watch, "watch", "w", false, "Watch for changes and select again")
	cmd.Flags().BoolVar(&ra.Copy, "copy", false, "Copy the report to the clipboard")
	cmd.Flags().StringVar(&ra.Theme, "theme", report.DefaultTheme, "Chroma style used for highlighting")
	cmd.Flags().BoolVar(&ra.WriteConfig, "write-config", false, "Write the default configuration file and exit")
	cmd.Flags().BoolVar(&ra.ShowConfig, "show-config", false, "Print the active configuration and exit")

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}

	err = cmd.MarkFlagFilename("output", "json")
	if err != nil {
		panic(fmt.Errorf("mark output flag: %w", err))
	}

	err = cmd.RegisterFlagCompletionFunc("format",
		cobra.FixedCompletions(report.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.RegisterFlagCompletionFunc("answer", answerCompletion)
	if err != nil {
		panic(err)
	}
}

func NewRunCmd(ra *RunArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "run [path]",
		Short:             "Default command, can be used explicitly if the path is ambiguous",
		Example:           cmdExamples,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: pathCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			ra.Path = "."
			if len(args) > 0 {
				ra.Path = args[0]
			}

			return run(cmd, ra)
		},
	}
	ra.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func pathCompletion(_ *cobra.Command, args []string, _ string) ([]cobra.Completion, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return nil, cobra.ShellCompDirectiveFilterDirs
	}

	return nil, cobra.ShellCompDirectiveNoFileComp
}

// answerCompletion completes attribute names, then their values.
func answerCompletion(_ *cobra.Command, _ []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
	reg := attr.Default()

	name, _, ok := strings.Cut(toComplete, "=")
	if !ok {
		var completions []cobra.Completion
		for _, a := range reg.OfKind(attr.KindDetectable, attr.KindInput, attr.KindGuideline) {
			completions = append(completions, cobra.CompletionWithDesc(a.Name+"=", a.Prompt))
		}

		return completions, cobra.ShellCompDirectiveNoSpace | cobra.ShellCompDirectiveNoFileComp
	}

	a, found := reg.Get(name)
	if !found {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	completions := make([]cobra.Completion, 0, len(a.Values))
	for _, v := range a.Values {
		completions = append(completions, name+"="+v)
	}

	return completions, cobra.ShellCompDirectiveNoFileComp
}

func run(cmd *cobra.Command, ra *RunArgs) error {
	ctx := cmd.Context()

	root, err := filepath.Abs(ra.Path)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", ra.Path, err)
	}

	answers, err := parseAnswers(ra.Answers)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(ra.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	if ra.WriteConfig {
		return writeConfig(ra.ConfigPath)
	}

	s, err := loadSettings(ra.ConfigPath, root)
	if err != nil {
		return err
	}

	if ra.ShowConfig {
		return showConfig(cmd.OutOrStdout(), s)
	}

	eng, err := s.newEngine()
	if err != nil {
		return err
	}

	interactive := !ra.NoInput && !ra.Watch && isTerminal(os.Stdin) && isTerminal(os.Stdout)

	out := &output{
		w:        cmd.OutOrStdout(),
		renderer: newRenderer(format, ra.Theme, cmd.OutOrStdout()),
		path:     ra.Output,
		diff:     ra.Diff,
		copy:     ra.Copy,
	}

	if ra.Diff {
		prevPath := ra.Previous
		if prevPath == "" {
			prevPath = ra.Output
		}

		out.prev, err = readSelection(prevPath)
		if err != nil {
			return err
		}
	}

	selectOnce := func(ctx context.Context) error {
		var p Prompter
		if interactive {
			p = NewFormPrompter()
		}

		sel, err := selectRules(ctx, eng, s, root, answers, p, ra.RootArgs)
		if err != nil {
			return err
		}

		return out.write(sel)
	}

	if !ra.Watch {
		return selectOnce(ctx)
	}

	walker, err := s.Config.Evidence.NewWalker()
	if err != nil {
		return fmt.Errorf("create walker: %w", err)
	}

	w, err := watch.New(root, walker)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Later runs are compared against the one before.
	out.diff = true

	slog.Info("watching for changes", slog.String("root", root))

	return w.Run(ctx, selectOnce) //nolint:wrapcheck // Only returns watcher errors.
}

// selectRules detects, asks with p, and finalizes. While p owns the
// terminal, logs are held back and written once it is done.
func selectRules(
	ctx context.Context,
	eng *engine.Engine,
	s *settings,
	root string,
	answers map[string]attr.Value,
	p Prompter,
	ra *RootArgs,
) (*result.Selection, error) {
	session, err := eng.Detect(ctx, root, s.detectOpts(answers)...)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	for _, w := range session.Warnings {
		slog.Warn("evidence", slog.String("warning", w))
	}

	if p != nil && !session.Done() {
		restore, err := holdLogs(os.Stderr, ra)
		if err != nil {
			return nil, err
		}

		session, err = Complete(ctx, eng, session, p)

		restore()

		if err != nil {
			return nil, err
		}
	}

	sel, err := eng.Finalize(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}

	return sel, nil
}

// holdLogs routes logs to a [log.Backlog] until the returned function is
// called, which flushes the backlog to w and restores the previous logger.
func holdLogs(w io.Writer, ra *RootArgs) (func(), error) {
	backlog := log.NewBacklog(100)

	logHandler, err := log.CreateHandlerWithStrings(backlog, ra.LogLevel, ra.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("create log handler: %w", err)
	}

	prev := slog.Default()
	slog.SetDefault(slog.New(logHandler))

	return func() {
		slog.SetDefault(prev)

		if n := backlog.Dropped(); n > 0 {
			slog.Debug("log records dropped while prompting", slog.Int("count", n))
		}

		_, err := backlog.WriteTo(w)
		if err != nil {
			slog.Error("flush logs", slog.Any("err", err))
		}
	}, nil
}

// output writes each selection as a report, and optionally to a file, the
// clipboard, and as a diff against the previous selection.
type output struct {
	w        io.Writer
	renderer *report.Renderer
	prev     *result.Selection
	path     string
	diff     bool
	copy     bool
}

func (o *output) write(sel *result.Selection) error {
	if o.diff && o.prev != nil {
		d, err := report.Diff(o.prev, sel)
		if err != nil {
			return err //nolint:wrapcheck // Already annotated.
		}

		if d == "" {
			slog.Info("selection unchanged", slog.String("fingerprint", sel.Fingerprint))
		} else {
			err = o.renderer.RenderDiff(o.w, o.prev, sel)
			if err != nil {
				return err //nolint:wrapcheck // Already annotated.
			}
		}
	} else {
		err := o.renderer.Render(o.w, sel)
		if err != nil {
			return err //nolint:wrapcheck // Already annotated.
		}
	}

	o.prev = sel

	if o.path != "" {
		err := writeSelection(o.path, sel)
		if err != nil {
			return err
		}
	}

	if o.copy {
		var buf bytes.Buffer

		err := report.New(o.renderer.Format()).Render(&buf, sel)
		if err != nil {
			return err //nolint:wrapcheck // Already annotated.
		}

		err = clipboard.WriteAll(buf.String())
		if err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}

		slog.Info("copied report to clipboard")
	}

	return nil
}

// writeSelection writes sel as JSON to path unless the file already holds
// the same bytes, so a watched output file does not trigger another run.
func writeSelection(path string, sel *result.Selection) error {
	b, err := report.Encode(report.FormatJSON, sel)
	if err != nil {
		return err //nolint:wrapcheck // Already annotated.
	}

	existing, err := os.ReadFile(path) //nolint:gosec // G304: Path from flag.
	if err == nil && bytes.Equal(existing, b) {
		return nil
	}

	err = api.WriteFile(path, b)
	if err != nil {
		return fmt.Errorf("write selection: %w", err)
	}

	slog.Debug("wrote selection", slog.String("path", path))

	return nil
}

// readSelection reads a previous selection. A missing file is not an error.
func readSelection(path string) (*result.Selection, error) {
	if path == "" {
		return nil, nil
	}

	b, err := os.ReadFile(path) //nolint:gosec // G304: Path from flag.
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("no previous selection", slog.String("path", path))
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read previous selection: %w", err)
	}

	sel, err := result.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return sel, nil
}

func newRenderer(format report.Format, theme string, w io.Writer) *report.Renderer {
	opts := []report.Opt{report.WithTheme(theme)}

	if f, ok := w.(*os.File); ok && isTerminal(f) {
		opts = append(opts, report.WithColor(termenv.ColorProfile()))

		width, _, err := term.GetSize(int(f.Fd()))
		if err == nil {
			opts = append(opts, report.WithWidth(width))
		}
	}

	return report.New(format, opts...)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func writeConfig(path string) error {
	if path == "" {
		path = configs.GetPath()
	}

	return configs.WriteDefault(path, true) //nolint:wrapcheck // Already annotated.
}

func showConfig(w io.Writer, s *settings) error {
	slog.Info("active configuration", slog.String("path", s.ConfigPath))

	b, err := s.Config.MarshalYAML()
	if err != nil {
		return err //nolint:wrapcheck // Already annotated.
	}

	_, err = w.Write(b)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
