package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"sevenstream/internal/config"
	"sevenstream/internal/logging"
	"sevenstream/internal/session"
	"sevenstream/internal/transcript"
)

// ErrLocked is returned when another run holds the archive lock.
var ErrLocked = errors.New("archive is locked by another run")

const chunkQueueSize = 64

// Runner launches 7-Zip and classifies its output.
type Runner struct {
	cfg    *config.Config
	exec   Executor
	logger *slog.Logger
	newID  func() string
	now    func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor overrides the process executor.
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogger sets the logger used by the runner and its sessions.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIDGenerator overrides how session identifiers are generated.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a Runner for the configured binary.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		exec:   commandExecutor{waitDelay: waitDelay},
		logger: logging.NewNop(),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "runner")
	return r
}

// Options tune a single run.
type Options struct {
	// ID overrides the generated session identifier.
	ID string
	// DataType forces the body format instead of inferring it from the
	// command line or the headers.
	DataType session.DataType
	// Sink receives every session event.
	Sink session.Sink
	// LockPath, when set, is locked for the duration of the run.
	LockPath string
	// Record captures a transcript of the raw output.
	Record bool
	// Timeout overrides the configured run timeout. Zero keeps the
	// configured value.
	Timeout time.Duration
}

// Result describes a finished run.
type Result struct {
	ID          string
	Binary      string
	Args        []string
	Started     time.Time
	Finished    time.Time
	Record      session.Record
	Entries     int
	StdoutBytes int
	StderrBytes int
	// Transcript is nil unless Options.Record was set.
	Transcript *transcript.Transcript
	// ProcessErr is the raw executor error, before classification.
	ProcessErr error
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

type chunk struct {
	stream session.StreamKind
	data   []byte
}

// tapSink forwards events to the caller's sink, tallies data entries and
// logs progress once per sampler bucket.
type tapSink struct {
	next    session.Sink
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	entries int
}

func (t *tapSink) Emit(evt session.Event) {
	switch evt.Kind {
	case session.EventData:
		t.entries++
	case session.EventProgress:
		if evt.Progress != nil && t.sampler.ShouldLog(float64(evt.Progress.Percent)) {
			t.logger.Info("7-Zip progress", logging.Args(logging.Progress(evt.Progress.Percent, evt.Progress.FileName)...)...)
		}
	}
	if t.next != nil {
		t.next.Emit(evt)
	}
}

// Run executes the binary with args. The returned Result is non-nil whenever
// the process was attempted; the error is the session's error record, or a
// setup failure such as ErrLocked.
func (r *Runner) Run(ctx context.Context, args []string, opts Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	binary := strings.TrimSpace(r.cfg.SevenZip.Binary)
	if binary == "" {
		return nil, errors.New("run: no 7-Zip binary configured")
	}
	enc, err := session.LookupEncoding(r.cfg.SevenZip.OutputEncoding)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	if opts.LockPath != "" {
		unlock, err := acquireLock(opts.LockPath)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = r.cfg.RunTimeout()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	id := opts.ID
	if id == "" {
		id = r.newID()
	}
	ctx = logging.WithSessionID(ctx, id)
	logger := logging.WithContext(ctx, r.logger)

	sink := &tapSink{
		next:    opts.Sink,
		logger:  logger,
		sampler: logging.NewProgressSampler(r.cfg.Progress.BucketSize),
	}
	// The session tags its own records with the session id.
	dataType := opts.DataType
	if dataType == session.DataUnknown {
		dataType = session.DataTypeForCommand(args)
	}
	sessOpts := []session.Option{session.WithLogger(r.logger), session.WithEncoding(enc)}
	if dataType != session.DataUnknown {
		sessOpts = append(sessOpts, session.WithDataType(dataType))
	}
	sess := session.New(id, sink, sessOpts...)

	var recorder *transcript.Recorder
	if opts.Record {
		recorder = transcript.NewRecorder(transcript.Header{
			SessionID: id,
			Binary:    binary,
			Args:      args,
			DataType:  dataType,
			Encoding:  r.cfg.SevenZip.OutputEncoding,
		}, transcript.WithClock(r.now))
	}

	result := &Result{ID: id, Binary: binary, Args: append([]string(nil), args...), Started: r.now()}
	logger.Info("7-Zip started",
		logging.String("binary", binary),
		logging.String("args", strings.Join(args, " ")),
		logging.Duration("timeout", timeout),
	)

	queue := make(chan chunk, chunkQueueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range queue {
			if recorder != nil {
				recorder.Record(c.stream, c.data)
			}
			switch c.stream {
			case session.Stdout:
				result.StdoutBytes += len(c.data)
			case session.Stderr:
				result.StderrBytes += len(c.data)
			}
			if err := sess.Feed(c.stream, c.data); err != nil {
				logging.WarnWithContext(logger, "chunk dropped", "chunk_dropped",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "executor reported an unknown stream"),
				)
			}
		}
	}()

	execErr := r.exec.Run(ctx, binary, args, func(stream session.StreamKind, data []byte) {
		queue <- chunk{stream: stream, data: data}
	})
	close(queue)
	<-done

	if execErr != nil {
		sess.OnProcessError(execErr)
	}
	sess.OnEnd()

	result.Finished = r.now()
	result.Record = sess.Snapshot()
	result.Entries = sink.entries
	result.ProcessErr = execErr
	if recorder != nil {
		result.Transcript = recorder.Finish(execErr)
	}

	logger.Debug("7-Zip finished",
		logging.Duration("duration", result.Duration()),
		logging.Int("entries", result.Entries),
		logging.Int("stdout_bytes", result.StdoutBytes),
		logging.Int("stderr_bytes", result.StderrBytes),
	)
	return result, sess.Err()
}

func acquireLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return func() { _ = lock.Unlock() }, nil
}
