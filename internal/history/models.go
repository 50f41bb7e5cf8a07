package history

import (
	"time"

	"sevenstream/internal/session"
)

// Outcome summarizes how a run ended.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

// Run is one stored 7-Zip invocation.
type Run struct {
	ID           string             `json:"id" yaml:"id"`
	Binary       string             `json:"binary" yaml:"binary"`
	Args         []string           `json:"args" yaml:"args"`
	DataType     session.DataType   `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	Stage        session.Stage      `json:"stage" yaml:"stage"`
	Outcome      Outcome            `json:"outcome" yaml:"outcome"`
	ErrorSource  string             `json:"error_source,omitempty" yaml:"error_source,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	ExitCode     int                `json:"exit_code" yaml:"exit_code"`
	Info         []session.InfoPair `json:"info" yaml:"info"`
	EntryCount   int                `json:"entry_count" yaml:"entry_count"`
	StdoutBytes  int                `json:"stdout_bytes" yaml:"stdout_bytes"`
	StderrBytes  int                `json:"stderr_bytes" yaml:"stderr_bytes"`
	StartedAt    time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time          `json:"finished_at" yaml:"finished_at"`
	// HasTranscript is filled on reads.
	HasTranscript bool `json:"has_transcript" yaml:"has_transcript"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewRun builds a Run from a finished session record.
func NewRun(id, binary string, args []string, rec session.Record, started, finished time.Time) *Run {
	run := &Run{
		ID:         id,
		Binary:     binary,
		Args:       append([]string{}, args...),
		DataType:   rec.DataType,
		Stage:      rec.Stage,
		Outcome:    OutcomeOK,
		ExitCode:   0,
		Info:       rec.Info.Pairs(),
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
	}
	if rec.Err != nil {
		run.Outcome = OutcomeError
		run.ErrorSource = string(rec.Err.Source)
		run.ErrorMessage = rec.Err.Message
		run.ExitCode = rec.Err.ExitCode
	}
	return run
}
