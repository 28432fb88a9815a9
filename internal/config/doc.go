// Package config loads, validates, and defaults docket's TOML configuration.
//
// Resolution order: repository defaults, then the config file, then
// DOCKET_-prefixed environment variables. Path fields are expanded (~) and
// made absolute during normalization.
package config
