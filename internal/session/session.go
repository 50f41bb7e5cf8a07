package session

import (
	"log/slog"

	"golang.org/x/text/encoding"

	"sevenstream/internal/logging"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger injects the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDataType presets the data type instead of inferring it from headers.
func WithDataType(dataType DataType) Option {
	return func(s *Session) {
		s.record.setDataType(dataType)
	}
}

// WithEncoding sets the character encoding of the process output.
func WithEncoding(enc encoding.Encoding) Option {
	return func(s *Session) {
		if enc != nil {
			s.decoder = newTextDecoder(enc)
		}
	}
}

// Session tracks the output of one 7-Zip process invocation.
type Session struct {
	id        string
	record    *Record
	lines     LineBuffer
	decoder   textDecoder
	sink      Sink
	logger    *slog.Logger
	techEntry *Entry
	ended     bool
}

// New creates a Session in the HEADERS stage. Events are delivered to sink;
// a nil sink discards them.
func New(id string, sink Sink, opts ...Option) *Session {
	if sink == nil {
		sink = Discard
	}
	s := &Session{
		id:      id,
		record:  newRecord(DataUnknown),
		decoder: newTextDecoder(nil),
		sink:    sink,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logging.String(logging.FieldSessionID, id))
	return s
}

// ID returns the identifier given at construction.
func (s *Session) ID() string {
	return s.id
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	return s.record.Stage
}

// DataType returns the data type, which may still be unknown.
func (s *Session) DataType() DataType {
	return s.record.DataType
}

// Done reports whether the terminal event was emitted.
func (s *Session) Done() bool {
	return s.ended
}

// Err returns the attached error record, or nil. The result is typed as
// error so a clean session compares equal to nil.
func (s *Session) Err() error {
	if s.record.Err == nil {
		return nil
	}
	return s.record.Err
}

// Snapshot returns a deep copy of the record.
func (s *Session) Snapshot() Record {
	return s.record.clone()
}

// OnStdout splits chunk into lines and classifies each complete line.
func (s *Session) OnStdout(chunk []byte) {
	if s.ended {
		s.logger.Debug("stdout after end ignored", logging.Int("bytes", len(chunk)))
		return
	}
	s.dispatchLines(s.decoder.feed(chunk, false))
}

func (s *Session) dispatchLines(text []byte) {
	for _, raw := range s.lines.Feed(text) {
		s.dispatch(validText(raw))
	}
}

// dispatch runs the line matchers in priority order and stops at the first
// one that consumes the line.
func (s *Session) dispatch(line string) {
	s.logger.Debug("stdout", logging.String("line", line))

	if matchInfo(s, line) {
		return
	}
	if matchEndOfHeaders(s, line) && s.record.DataType != DataSymbol {
		return
	}
	if s.record.Stage != StageBody {
		return
	}
	if matchEndOfBody(s, line) {
		return
	}
	if matchProgress(s, line) {
		return
	}
	matchBodyData(s, line)
}

// OnEnd dispatches any unterminated last line, then emits the terminal
// event: error when an error record is attached, end otherwise. It must be
// called once both output streams are drained; later calls do nothing.
func (s *Session) OnEnd() {
	if s.ended {
		return
	}
	s.dispatchLines(s.decoder.feed(nil, true))
	if raw, ok := s.lines.Flush(); ok {
		s.dispatch(validText(raw))
	}
	s.flushTechEntry()
	s.ended = true

	rec := s.record
	if rec.Err != nil {
		s.logger.Info("7-Zip session failed",
			logging.String(logging.FieldStage, string(rec.Stage)),
			logging.String(logging.FieldErrorSource, string(rec.Err.Source)),
		)
		s.sink.Emit(Event{Kind: EventError, Err: rec.Err})
		return
	}
	s.logger.Info("7-Zip session finished",
		logging.String(logging.FieldStage, string(rec.Stage)),
		logging.Int("info_keys", rec.Info.Len()),
		logging.String(logging.FieldDataType, string(rec.DataType)),
	)
	s.sink.Emit(Event{Kind: EventEnd})
}

func (s *Session) advance(next Stage) {
	prev := s.record.Stage
	if !s.record.advance(next) {
		return
	}
	s.logger.Debug("stage changed", logging.String("from", string(prev)), logging.String("to", string(next)))
	s.emit(Event{Kind: EventStage, Stage: next})
}

func (s *Session) emit(evt Event) {
	s.sink.Emit(evt)
}
