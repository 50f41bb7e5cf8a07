package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"sevenstream/internal/session"
)

// waitDelay bounds how long Wait keeps reading output once the process has
// exited or the context is done. Pipes still held open by grandchildren are
// closed when it expires.
const waitDelay = 5 * time.Second

// ChunkFunc receives raw output. It may be called from several goroutines.
type ChunkFunc func(stream session.StreamKind, chunk []byte)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onChunk ChunkFunc) error
}

// chunkWriter forwards each write of one process stream as a chunk.
type chunkWriter struct {
	stream  session.StreamKind
	onChunk ChunkFunc
}

func (w chunkWriter) Write(p []byte) (int, error) {
	if len(p) > 0 && w.onChunk != nil {
		w.onChunk(w.stream, append([]byte(nil), p...))
	}
	return len(p), nil
}

type commandExecutor struct {
	waitDelay time.Duration
}

func (e commandExecutor) Run(ctx context.Context, binary string, args []string, onChunk ChunkFunc) error {
	delay := e.waitDelay
	if delay <= 0 {
		delay = waitDelay
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.WaitDelay = delay
	cmd.Stdout = chunkWriter{stream: session.Stdout, onChunk: onChunk}
	cmd.Stderr = chunkWriter{stream: session.Stderr, onChunk: onChunk}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if waitErr != nil {
			return fmt.Errorf("%w: %w", ctxErr, waitErr)
		}
		return ctxErr
	}
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		return fmt.Errorf("output still open %s after exit: %w", delay, waitErr)
	}
	return waitErr
}
