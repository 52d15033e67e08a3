// Package config loads ruler's YAML configuration kinds.
//
// A [Loader] decodes a document, validates it against the kind's JSON
// schema, and reports failures annotated with the offending YAML source.
package config
