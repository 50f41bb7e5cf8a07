// Package config loads, normalizes, and validates sevenstream configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the SEVENSTREAM_BINARY environment override. The
// Config type centralizes the 7-Zip binary, output encoding, run history and
// logging knobs so the runner and CLI discover them in one pass.
package config
