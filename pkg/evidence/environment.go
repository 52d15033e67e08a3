package evidence

import (
	"context"
	"os"
	"runtime"
	"strings"

	"golang.org/x/text/language"

	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/signal"
)

// EnvironmentScanner reports facts about the machine running the scan.
type EnvironmentScanner struct {
	getenv func(string) string
	goos   string
	goarch string
}

// EnvironmentOpt configures an [EnvironmentScanner].
type EnvironmentOpt func(*EnvironmentScanner)

// WithGetenv sets the environment lookup function.
func WithGetenv(getenv func(string) string) EnvironmentOpt {
	return func(s *EnvironmentScanner) {
		s.getenv = getenv
	}
}

// WithPlatform overrides the reported operating system and architecture.
func WithPlatform(goos, goarch string) EnvironmentOpt {
	return func(s *EnvironmentScanner) {
		s.goos = goos
		s.goarch = goarch
	}
}

// NewEnvironmentScanner creates an [EnvironmentScanner].
func NewEnvironmentScanner(opts ...EnvironmentOpt) *EnvironmentScanner {
	s := &EnvironmentScanner{
		getenv: os.Getenv,
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name implements [Source].
func (s *EnvironmentScanner) Name() signal.Source {
	return signal.Environment
}

// Collect implements [Source].
func (s *EnvironmentScanner) Collect(_ context.Context, _ string) ([]signal.Signal, error) {
	set := newSignalSet(signal.Environment, 1)
	set.add(hint{attr.OS, s.goos, 1}, "runtime GOOS")
	set.add(hint{attr.Arch, s.goarch, 1}, "runtime GOARCH")

	if sh := s.shell(); sh != "" {
		set.add(hint{attr.Shell, sh, 1}, "environment SHELL")
	}

	if loc, src := s.locale(); loc != "" {
		set.add(hint{attr.Locale, loc, 1}, "environment "+src)
	}

	return set.list(), nil
}

func (s *EnvironmentScanner) shell() string {
	sh := s.getenv("SHELL")
	if sh == "" {
		sh = s.getenv("COMSPEC")
	}

	if sh == "" {
		return ""
	}

	// Either separator, so Windows paths are handled on any platform.
	base := sh[strings.LastIndexAny(sh, `/\`)+1:]

	return strings.TrimSuffix(strings.ToLower(base), ".exe")
}

// locale returns the BCP 47 form of the first POSIX locale variable set.
func (s *EnvironmentScanner) locale() (string, string) {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := s.getenv(key)
		if v == "" {
			continue
		}

		if tag, ok := parseLocale(v); ok {
			return tag, key
		}
	}

	return "", ""
}

func parseLocale(v string) (string, bool) {
	// Strip codeset and modifier, as in "en_US.UTF-8@euro".
	if i := strings.IndexAny(v, ".@"); i >= 0 {
		v = v[:i]
	}

	if v == "" || v == "C" || v == "POSIX" {
		return "", false
	}

	tag, err := language.Parse(strings.ReplaceAll(v, "_", "-"))
	if err != nil {
		return "", false
	}

	return tag.String(), true
}
