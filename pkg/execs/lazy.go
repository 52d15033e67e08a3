package execs

import (
	"fmt"
	"regexp"
	"sync"
)

// LazyRegexp compiles a regular expression on first use. The pattern is
// compiled at most once, even when accessed concurrently.
type LazyRegexp struct {
	err     error
	regex   *regexp.Regexp
	pattern string
	once    sync.Once
}

// NewLazyRegexp creates a [LazyRegexp] for pattern.
func NewLazyRegexp(pattern string) *LazyRegexp {
	return &LazyRegexp{pattern: pattern}
}

// Get returns the compiled regular expression.
func (lr *LazyRegexp) Get() (*regexp.Regexp, error) {
	lr.once.Do(func() {
		lr.regex, lr.err = regexp.Compile(lr.pattern)
		if lr.err != nil {
			lr.err = fmt.Errorf("compile pattern %q: %w", lr.pattern, lr.err)
		}
	})

	return lr.regex, lr.err
}

// Match reports whether b contains a match. Invalid patterns never match.
func (lr *LazyRegexp) Match(b []byte) bool {
	re, err := lr.Get()
	if err != nil {
		return false
	}

	return re.Match(b)
}

// Pattern returns the uncompiled pattern.
func (lr *LazyRegexp) Pattern() string {
	return lr.pattern
}

// FindAllSubmatch returns up to n matches in b with their submatches.
// Invalid patterns never match.
func (lr *LazyRegexp) FindAllSubmatch(b []byte, n int) [][][]byte {
	re, err := lr.Get()
	if err != nil {
		return nil
	}

	return re.FindAllSubmatch(b, n)
}

// FindStringSubmatch returns the leftmost match in s with its submatches.
// Invalid patterns never match.
func (lr *LazyRegexp) FindStringSubmatch(s string) []string {
	re, err := lr.Get()
	if err != nil {
		return nil
	}

	return re.FindStringSubmatch(s)
}
