// Package logging assembles structured slog loggers and formatting helpers used
// across sevenstream.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so runner code can tag log lines with
// the session identifier. NewNop provides a silent logger for tests and
// wiring code that cannot fail.
package logging
