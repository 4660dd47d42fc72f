// Package config loads, normalizes, and validates milkcrate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MILKCRATE_COOKIES. The Config type centralizes every knob the CLI needs,
// allowing state/download directories, platform credentials, and transport
// policies to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
