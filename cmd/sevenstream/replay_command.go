package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sevenstream/internal/session"
	"sevenstream/internal/transcript"
)

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "replay <id>",
		Short: "Re-classify the recorded output of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			tr, err := store.Transcript(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			renderer := newEventRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), tr.SessionID, asJSON, cfg.Progress.BucketSize)
			s, err := transcript.Replay(tr, renderer, session.WithLogger(logger))
			if err != nil {
				return err
			}
			stdout, stderr := tr.Bytes()
			summary := runSummary{ID: tr.SessionID, StdoutBytes: stdout, StderrBytes: stderr}
			if err := renderer.Finish(s.Snapshot(), summary); err != nil {
				return err
			}
			if err := s.Err(); err != nil {
				return fmt.Errorf("7-Zip failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print events as JSON lines")
	return cmd
}
