package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/macropower/ruler/api/v1beta1/configs"
	"github.com/macropower/ruler/api/v1beta1/matrices"
	"github.com/macropower/ruler/api/v1beta1/projectconfigs"
	"github.com/macropower/ruler/pkg/schema"
)

var schemaKinds = map[string]func() any{
	"config":  func() any { return configs.New() },
	"matrix":  func() any { return matrices.New() },
	"project": func() any { return projectconfigs.New() },
}

func schemaKindNames() []string {
	names := make([]string, 0, len(schemaKinds))
	for k := range schemaKinds {
		names = append(names, k)
	}

	slices.Sort(names)

	return names
}

func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema [config|matrix|project]",
		Short:     "Print the JSON schema of a configuration kind",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: schemaKindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := schema.NewGenerator(schemaKinds[args[0]]()).Generate()
			if err != nil {
				return fmt.Errorf("generate %s schema: %w", args[0], err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			if err != nil {
				return fmt.Errorf("write schema: %w", err)
			}

			return nil
		},
	}
}
