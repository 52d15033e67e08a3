// Package execs runs external commands with a minimal environment and
// OpenTelemetry tracing, and provides lazily compiled regular expressions.
package execs
