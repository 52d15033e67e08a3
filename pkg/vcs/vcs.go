// Package vcs reads commit metadata from version control.
//
// Only authors and timestamps are read; everything else about the
// repository is out of scope.
package vcs

import (
	"context"
	"errors"
	"time"
)

// ErrNoRepository is returned when the project is not under version control.
// Callers treat it as an absence of evidence rather than a failure.
var ErrNoRepository = errors.New("no repository")

// Commit is the metadata of a single commit.
type Commit struct {
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`
	Author    string    `json:"author"`
}

// Query bounds a log request. Zero values mean unbounded.
type Query struct {
	Since time.Time
	Limit int
}

// Log lists commits of the repository containing root, newest first.
type Log interface {
	Log(ctx context.Context, root string, q Query) ([]Commit, error)
}

// Stats summarizes a commit history.
type Stats struct {
	Authors int
	Commits int
	// PerWeek is the average number of commits per week over the window.
	PerWeek float64
}

// Summarize computes [Stats] for commits over a window ending at now.
func Summarize(commits []Commit, window time.Duration) Stats {
	authors := map[string]bool{}
	for _, c := range commits {
		authors[c.Author] = true
	}

	s := Stats{Authors: len(authors), Commits: len(commits)}

	weeks := window.Hours() / (24 * 7)
	if weeks > 0 {
		s.PerWeek = float64(len(commits)) / weeks
	}

	return s
}
