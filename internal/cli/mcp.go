package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/macropower/ruler/pkg/mcp"
)

type ServeMCPArgs struct {
	*RootArgs

	Path         string
	ConfigPath   string
	Address      string
	SessionLimit int
}

func NewServeMCPArgs(rootArgs *RootArgs) *ServeMCPArgs {
	return &ServeMCPArgs{RootArgs: rootArgs}
}

func (sa *ServeMCPArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sa.ConfigPath, "config", "", "Path to the ruler configuration file")
	cmd.Flags().StringVar(&sa.Address, "addr", "",
		"Serve streamable HTTP at this address instead of stdio")
	cmd.Flags().IntVar(&sa.SessionLimit, "session-limit", mcp.DefaultSessionLimit,
		"Number of questionnaire sessions kept in memory")

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}
}

func NewServeMCPCmd(sa *ServeMCPArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "serve-mcp [path]",
		Short:             "Serve the detect, answer and finalize tools over MCP",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: pathCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			sa.Path = "."
			if len(args) > 0 {
				sa.Path = args[0]
			}

			return serveMCP(cmd, sa)
		},
	}
	sa.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func serveMCP(cmd *cobra.Command, sa *ServeMCPArgs) error {
	root, err := filepath.Abs(sa.Path)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", sa.Path, err)
	}

	s, err := loadSettings(sa.ConfigPath, root)
	if err != nil {
		return err
	}

	eng, err := s.newEngine()
	if err != nil {
		return err
	}

	srv, err := mcp.NewServer(sa.Address, eng, root, mcp.WithSessionLimit(sa.SessionLimit))
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	slog.Info("serving MCP", slog.String("root", root), slog.String("addr", sa.Address))

	err = srv.Serve(cmd.Context())
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}

	return nil
}
