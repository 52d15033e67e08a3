package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/macropower/ruler/pkg/report"
)

type DetectArgs struct {
	*RootArgs

	Path       string
	ConfigPath string
	Format     string
	Theme      string
	Answers    []string
}

func NewDetectArgs(rootArgs *RootArgs) *DetectArgs {
	return &DetectArgs{RootArgs: rootArgs}
}

func (da *DetectArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&da.ConfigPath, "config", "", "Path to the ruler configuration file")
	cmd.Flags().StringArrayVarP(&da.Answers, "answer", "a", nil,
		"Answer a question as attribute=value[,value], may be repeated")
	cmd.Flags().StringVarP(&da.Format, "format", "f", string(report.FormatText),
		fmt.Sprintf("Report format, one of: %s", report.AllFormats))
	cmd.Flags().StringVar(&da.Theme, "theme", report.DefaultTheme, "Chroma style used for highlighting")

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
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

func NewDetectCmd(da *DetectArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "detect [path]",
		Short:             "Show detected attributes and the questions left to ask",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: pathCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			da.Path = "."
			if len(args) > 0 {
				da.Path = args[0]
			}

			return detect(cmd, da)
		},
	}
	da.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func detect(cmd *cobra.Command, da *DetectArgs) error {
	root, err := filepath.Abs(da.Path)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", da.Path, err)
	}

	answers, err := parseAnswers(da.Answers)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(da.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	s, err := loadSettings(da.ConfigPath, root)
	if err != nil {
		return err
	}

	eng, err := s.newEngine()
	if err != nil {
		return err
	}

	session, err := eng.Detect(cmd.Context(), root, s.detectOpts(answers)...)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	r := newRenderer(format, da.Theme, cmd.OutOrStdout())

	return r.RenderSession(cmd.OutOrStdout(), session) //nolint:wrapcheck // Already annotated.
}
