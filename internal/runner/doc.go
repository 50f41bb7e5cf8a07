// Package runner executes the 7-Zip binary and streams its output into a
// session.
//
// The Executor reads stdout and stderr concurrently; the Runner funnels every
// chunk into one goroutine that owns the session, so classification sees the
// chunks in the order they were read. Once both pipes are drained and the
// process has exited, the process error (if any) is reported and the session
// is finalized. Runs can be guarded by a per-archive file lock, bounded by a
// timeout and captured into a transcript for later replay.
package runner
