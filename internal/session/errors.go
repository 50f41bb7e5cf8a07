package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"sevenstream/internal/logging"
)

// ErrorSource names the channel an ErrorRecord came from.
type ErrorSource string

const (
	SourceProcess ErrorSource = "process"
	SourceStderr  ErrorSource = "stderr"
)

// 7-Zip exit codes.
const (
	ExitWarning      = 1
	ExitFatal        = 2
	ExitCommandLine  = 7
	ExitOutOfMemory  = 8
	ExitUserStopped  = 255
	exitCodeNotKnown = -1
)

// ErrorRecord is the normalized failure attached to a session.
type ErrorRecord struct {
	Source   ErrorSource
	Level    string
	Message  string
	Raw      []byte
	Cause    error
	ExitCode int
	Hint     string
}

func (e *ErrorRecord) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "7-Zip reported an error"
	}
	if e.Hint != "" {
		return string(e.Source) + ": " + msg + " (" + e.Hint + ")"
	}
	return string(e.Source) + ": " + msg
}

func (e *ErrorRecord) Unwrap() error {
	return e.Cause
}

var stderrLevelPattern = regexp.MustCompile(`(?i)\b(WARNING|ERROR):\s*`)

// exitCoder is satisfied by *exec.ExitError and by replayed process errors.
type exitCoder interface {
	error
	ExitCode() int
}

func newProcessError(err error) *ErrorRecord {
	record := &ErrorRecord{Source: SourceProcess, Cause: err, ExitCode: exitCodeNotKnown}
	if err == nil {
		return record
	}
	record.Message = strings.TrimSpace(err.Error())
	var exitErr exitCoder
	if errors.As(err, &exitErr) {
		record.ExitCode = exitErr.ExitCode()
		record.Hint = exitCodeHint(record.ExitCode)
	}
	return record
}

func newStderrError(raw []byte, text string) *ErrorRecord {
	record := &ErrorRecord{
		Source:   SourceStderr,
		Message:  strings.TrimSpace(text),
		Raw:      append([]byte(nil), raw...),
		ExitCode: exitCodeNotKnown,
	}
	if match := stderrLevelPattern.FindStringSubmatch(record.Message); match != nil {
		record.Level = strings.ToUpper(match[1])
	}
	return record
}

func exitCodeHint(code int) string {
	switch code {
	case ExitWarning:
		return "warning: some files could not be processed"
	case ExitFatal:
		return "fatal error"
	case ExitCommandLine:
		return "command line error"
	case ExitOutOfMemory:
		return "not enough memory for operation"
	case ExitUserStopped:
		return "process stopped by user"
	case exitCodeNotKnown, 0:
		return ""
	default:
		return fmt.Sprintf("unexpected exit code %d", code)
	}
}

// OnProcessError records a process-level failure: the binary could not be
// started, crashed, or exited with a non-zero code.
func (s *Session) OnProcessError(err error) {
	if s.ended {
		s.logger.Debug("process error after end ignored", logging.Error(err))
		return
	}
	s.attach(newProcessError(err))
}

// OnStderr records text written to the error stream. Any stderr content is
// treated as a failure of the session, even when the process exits cleanly.
func (s *Session) OnStderr(chunk []byte) {
	if s.ended {
		s.logger.Debug("stderr after end ignored", logging.Int("bytes", len(chunk)))
		return
	}
	s.attach(newStderrError(chunk, s.decoder.decode(chunk)))
}

func (s *Session) attach(record *ErrorRecord) {
	if !s.record.attachError(record) {
		logging.WarnWithContext(s.logger, "additional 7-Zip error ignored", "sevenzip_error_ignored",
			logging.String(logging.FieldErrorHint, "the first error already determines the outcome"),
			logging.String(logging.FieldImpact, "error is logged but not reported"),
			logging.String(logging.FieldErrorSource, string(record.Source)),
			logging.String(logging.FieldErrorMessage, record.Message),
		)
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldErrorSource, string(record.Source)),
		logging.String(logging.FieldErrorMessage, record.Message),
		logging.String("error_level", record.Level),
		logging.Int(logging.FieldExitCode, record.ExitCode),
	}
	if record.Hint != "" {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, record.Hint))
	}
	logging.ErrorWithContext(s.logger, "7-Zip error", "sevenzip_error", attrs...)
}
