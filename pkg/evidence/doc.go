// Package evidence collects signals about a project from independent,
// read-only sources.
//
// Four sources are provided:
//   - [ManifestScanner] parses dependency manifests and infrastructure files
//   - [PatternScanner] inspects file extensions and characteristic code fragments
//   - [HistoryScanner] derives team size and activity from commit metadata
//   - [EnvironmentScanner] reports the operating system, shell and locale
//
// A [Collector] runs sources concurrently, each under its own timeout.
// Missing or unreadable files are never errors: absence of evidence is an
// empty result.
package evidence
