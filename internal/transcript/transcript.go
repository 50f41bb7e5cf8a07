package transcript

import (
	"errors"
	"fmt"
	"time"

	"sevenstream/internal/session"
)

// FormatVersion is bumped whenever the serialized layout changes.
const FormatVersion = 1

// Frame is one chunk read from a process pipe.
type Frame struct {
	// Offset is the time since the run started, in nanoseconds.
	Offset int64              `cbor:"1,keyasint"`
	Stream session.StreamKind `cbor:"2,keyasint"`
	Data   []byte             `cbor:"3,keyasint"`
}

// Transcript is the complete raw record of one run.
type Transcript struct {
	Version   int      `cbor:"1,keyasint"`
	SessionID string   `cbor:"2,keyasint"`
	Binary    string   `cbor:"3,keyasint"`
	Args      []string `cbor:"4,keyasint,omitempty"`
	// DataType is set when the caller forced a data type or the command
	// line implied one; otherwise replay infers it from the headers exactly
	// as the live run did.
	DataType session.DataType `cbor:"5,keyasint,omitempty"`
	Encoding string           `cbor:"6,keyasint,omitempty"`
	// Started is a Unix timestamp in nanoseconds.
	Started      int64   `cbor:"7,keyasint"`
	Frames       []Frame `cbor:"8,keyasint"`
	ProcessError string  `cbor:"9,keyasint,omitempty"`
	ExitCode     int     `cbor:"10,keyasint"`
	Failed       bool    `cbor:"11,keyasint,omitempty"`
}

// StartedAt returns Started as a time.Time.
func (t *Transcript) StartedAt() time.Time {
	return time.Unix(0, t.Started)
}

// Bytes returns the total number of captured bytes per stream.
func (t *Transcript) Bytes() (stdout, stderr int) {
	for _, frame := range t.Frames {
		switch frame.Stream {
		case session.Stdout:
			stdout += len(frame.Data)
		case session.Stderr:
			stderr += len(frame.Data)
		}
	}
	return stdout, stderr
}

// Recorder accumulates frames for one run. It is not safe for concurrent
// use; the runner records from its single session goroutine.
type Recorder struct {
	transcript Transcript
	start      time.Time
	now        func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// Header describes the run a Recorder captures.
type Header struct {
	SessionID string
	Binary    string
	Args      []string
	DataType  session.DataType
	Encoding  string
}

// NewRecorder starts capturing a run.
func NewRecorder(header Header, opts ...RecorderOption) *Recorder {
	r := &Recorder{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.start = r.now()
	r.transcript = Transcript{
		Version:   FormatVersion,
		SessionID: header.SessionID,
		Binary:    header.Binary,
		Args:      append([]string(nil), header.Args...),
		DataType:  header.DataType,
		Encoding:  header.Encoding,
		Started:   r.start.UnixNano(),
		ExitCode:  -1,
	}
	return r
}

// Record appends a copy of chunk.
func (r *Recorder) Record(stream session.StreamKind, chunk []byte) {
	r.transcript.Frames = append(r.transcript.Frames, Frame{
		Offset: int64(r.now().Sub(r.start)),
		Stream: stream,
		Data:   append([]byte(nil), chunk...),
	})
}

// Finish seals the transcript with the process outcome. processErr is the
// error the executor returned, if any.
func (r *Recorder) Finish(processErr error) *Transcript {
	t := r.transcript
	t.Frames = append([]Frame(nil), r.transcript.Frames...)
	if processErr != nil {
		t.Failed = true
		t.ProcessError = processErr.Error()
		t.ExitCode = -1
		var coder interface{ ExitCode() int }
		if errors.As(processErr, &coder) {
			t.ExitCode = coder.ExitCode()
		}
	} else {
		t.ExitCode = 0
	}
	return &t
}

// ReplayedError stands in for the process error of a recorded run.
type ReplayedError struct {
	Message string
	Code    int
}

func (e *ReplayedError) Error() string {
	return e.Message
}

// ExitCode returns the recorded exit code, or -1 when none was known.
func (e *ReplayedError) ExitCode() int {
	return e.Code
}

// Err returns the recorded process error, or nil for a clean exit.
func (t *Transcript) Err() error {
	if !t.Failed {
		return nil
	}
	return &ReplayedError{Message: t.ProcessError, Code: t.ExitCode}
}

// Replay classifies the transcript again through a new session delivering
// to sink. The recorded data type and encoding are applied before any
// caller options.
func Replay(t *Transcript, sink session.Sink, opts ...session.Option) (*session.Session, error) {
	if t == nil {
		return nil, fmt.Errorf("replay: nil transcript")
	}
	if t.Version != FormatVersion {
		return nil, fmt.Errorf("replay: unsupported transcript version %d", t.Version)
	}
	base := make([]session.Option, 0, 2+len(opts))
	if t.DataType != session.DataUnknown {
		base = append(base, session.WithDataType(t.DataType))
	}
	if t.Encoding != "" {
		enc, err := session.LookupEncoding(t.Encoding)
		if err != nil {
			return nil, fmt.Errorf("replay: %w", err)
		}
		base = append(base, session.WithEncoding(enc))
	}
	s := session.New(t.SessionID, sink, append(base, opts...)...)
	for i, frame := range t.Frames {
		if err := s.Feed(frame.Stream, frame.Data); err != nil {
			return nil, fmt.Errorf("replay frame %d: %w", i, err)
		}
	}
	if err := t.Err(); err != nil {
		s.OnProcessError(err)
	}
	s.OnEnd()
	return s, nil
}
