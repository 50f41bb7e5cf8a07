// Package session classifies the line-oriented output of a running 7-Zip
// process into structured events.
//
// A Session owns one Record for the lifetime of one process invocation. Raw
// stdout chunks pass through a LineBuffer and then through a fixed-order list
// of line matchers that recognise metadata, stage boundaries, progress and
// per-file body data. Stderr chunks and process errors become ErrorRecords
// (first one wins), and OnEnd emits exactly one terminal event once all
// output has been dispatched.
//
// A Session is not safe for concurrent use. Callers that read stdout and
// stderr from separate goroutines must funnel the chunks into a single
// goroutine, as the runner package does.
package session
