package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// bindEnvVars sets every flag of cmd that was not given on the command line
// from a RULER_<FLAG_NAME> environment variable, e.g. "--no-input" from
// RULER_NO_INPUT. Flags take precedence over the environment, which takes
// precedence over defaults.
//
// The variable name is appended to each flag's usage.
func bindEnvVars(cmd *cobra.Command) {
	cmd.Flags().VisitAll(bindFlagToEnv)
	cmd.PersistentFlags().VisitAll(bindFlagToEnv)
}

func bindFlagToEnv(flag *pflag.Flag) {
	envName := flagToEnvName(flag.Name)

	if !strings.Contains(flag.Usage, envName) {
		flag.Usage = fmt.Sprintf("%s ($%s)", flag.Usage, envName)
	}

	if flag.Changed {
		return
	}

	envValue, ok := os.LookupEnv(envName)
	if !ok {
		return
	}

	// Slice flags append on Set, so each value is read as a comma
	// separated list replacing the default.
	if sv, ok := flag.Value.(pflag.SliceValue); ok {
		err := sv.Replace(splitEnvList(envValue))
		if err == nil {
			return
		}
	}

	err := flag.Value.Set(envValue)
	if err != nil {
		// Keep the default.
		slog.Error("failed to set flag from environment variable",
			slog.String("flag", flag.Name),
			slog.String("env", envName),
			slog.String("value", envValue),
			slog.Any("error", err),
		)
	}
}

// splitEnvList splits a RULER_ANSWER style list on ";" so answer values can
// keep their own "," separators.
func splitEnvList(s string) []string {
	var out []string

	for v := range strings.SplitSeq(s, ";") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}

	return out
}

// flagToEnvName converts a flag name to its environment variable name.
// Example: "log-level" -> "RULER_LOG_LEVEL".
func flagToEnvName(flagName string) string {
	envName := strings.ReplaceAll(flagName, "-", "_")
	return strings.ToUpper(cmdName + "_" + envName)
}
