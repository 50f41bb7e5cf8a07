package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sevenstream/internal/config"
	"sevenstream/internal/session"
	"sevenstream/internal/transcript"
)

const parseChunkSize = 32 * 1024

func newParseCommand(ctx *commandContext) *cobra.Command {
	var stdoutPath string
	var stderrPath string
	var dataType string
	var encodingName string
	var exitCode int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse --stdout FILE [--stderr FILE]",
		Short: "Classify captured 7-Zip output",
		Long: `Classify output captured from an earlier 7-Zip invocation. Use "-" to read
stdout from standard input. A non-zero --exit-code is reported as a process
error after both streams are consumed. Output of "h" and "l -slt" carries no
header naming its format; pass --data-type hash or techList for those.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(stdoutPath) == "" {
				return errors.New("--stdout is required")
			}
			forced, ok := session.ParseDataType(dataType)
			if !ok {
				return fmt.Errorf("unknown data type %q", dataType)
			}
			if encodingName == "" {
				encodingName = cfg.SevenZip.OutputEncoding
			}
			enc, err := session.LookupEncoding(encodingName)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			id := uuid.NewString()
			renderer := newEventRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), id, asJSON, cfg.Progress.BucketSize)
			opts := []session.Option{session.WithLogger(logger), session.WithEncoding(enc)}
			if forced != session.DataUnknown {
				opts = append(opts, session.WithDataType(forced))
			}
			s := session.New(id, renderer, opts...)

			stdoutBytes, err := feedCapture(cmd, s, session.Stdout, stdoutPath)
			if err != nil {
				return err
			}
			var stderrBytes int
			if strings.TrimSpace(stderrPath) != "" {
				if stderrBytes, err = feedCapture(cmd, s, session.Stderr, stderrPath); err != nil {
					return err
				}
			}
			if exitCode != 0 {
				s.OnProcessError(&transcript.ReplayedError{Message: fmt.Sprintf("exit status %d", exitCode), Code: exitCode})
			}
			s.OnEnd()

			summary := runSummary{ID: id, StdoutBytes: stdoutBytes, StderrBytes: stderrBytes}
			if err := renderer.Finish(s.Snapshot(), summary); err != nil {
				return err
			}
			if err := s.Err(); err != nil {
				return fmt.Errorf("7-Zip failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stdoutPath, "stdout", "", "File holding captured stdout (\"-\" for standard input)")
	cmd.Flags().StringVar(&stderrPath, "stderr", "", "File holding captured stderr")
	cmd.Flags().StringVar(&dataType, "data-type", "", "Force the body format (symbol, hash, list, techList)")
	cmd.Flags().StringVar(&encodingName, "encoding", "", "Character encoding of the capture (defaults to sevenzip.output_encoding)")
	cmd.Flags().IntVar(&exitCode, "exit-code", 0, "Exit code the captured process returned")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print events as JSON lines")
	return cmd
}

// feedCapture streams a capture file into the session in pipe-sized chunks.
// Captured stderr is delivered as one chunk, the way a failing 7-Zip writes
// its diagnostics.
func feedCapture(cmd *cobra.Command, s *session.Session, kind session.StreamKind, path string) (int, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return 0, err
		}
		file, err := os.Open(expanded)
		if err != nil {
			return 0, fmt.Errorf("open %s capture: %w", kind, err)
		}
		defer file.Close()
		r = file
	}

	if kind == session.Stderr {
		data, err := io.ReadAll(r)
		if err != nil {
			return 0, fmt.Errorf("read %s capture: %w", kind, err)
		}
		if len(data) > 0 {
			if err := s.Feed(kind, data); err != nil {
				return 0, err
			}
		}
		return len(data), nil
	}

	total := 0
	buf := make([]byte, parseChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += n
			if feedErr := s.Feed(kind, append([]byte(nil), buf[:n]...)); feedErr != nil {
				return total, feedErr
			}
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("read %s capture: %w", kind, err)
		}
	}
}
