// Package proxyd embeds the annotated default configuration.
//
// The root package exists only to embed config.default.toml via
// [DefaultConfigTOML]. cmd/proxyd writes it to the data directory on first
// run so the user has a documented file to edit.
package proxyd

import _ "embed"

// DefaultConfigTOML holds config.default.toml, generated by cmd/genconfig.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
