// Package main hosts the sevenstream CLI entrypoint and command graph.
//
// The Cobra command tree runs 7-Zip through the runner, classifies captured
// output offline, replays stored transcripts and manages the run history and
// configuration. Events are printed as JSON lines with --json; otherwise a
// progress bar (or sampled progress lines when stderr is not a terminal) is
// followed by info and entry tables.
package main
