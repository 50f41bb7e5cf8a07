package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sevenstream/internal/config"
	"sevenstream/internal/history"
	"sevenstream/internal/logging"
	"sevenstream/internal/runner"
	"sevenstream/internal/session"
	"sevenstream/internal/transcript"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dataType string
	var asJSON bool
	var lockPath string
	var lockArchive bool
	var noHistory bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run [flags] -- <7z arguments...>",
		Short: "Run 7-Zip and stream its output as events",
		Long: `Run 7-Zip with the given arguments and stream its output as events.

The body format is taken from --data-type when set. Otherwise "h" implies
hash and "l -slt" implies techList; any other command is classified from
its header lines (symbol for add, update, extract and test, list for "l").`,
		Example: `  sevenstream run -- a backup.7z docs/
  sevenstream run --json --data-type techList -- l -slt backup.7z`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			forced, ok := session.ParseDataType(dataType)
			if !ok {
				return fmt.Errorf("unknown data type %q", dataType)
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			id := uuid.NewString()
			record := cfg.History.Enabled && !noHistory
			renderer := newEventRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), id, asJSON, cfg.Progress.BucketSize)
			opts := runner.Options{
				ID:       id,
				DataType: forced,
				Sink:     renderer,
				LockPath: strings.TrimSpace(lockPath),
				Record:   record,
				Timeout:  timeout,
			}
			if opts.LockPath == "" && lockArchive {
				archive, ok := archiveArgument(args)
				if !ok {
					return fmt.Errorf("--lock-archive: no archive argument in %q", strings.Join(args, " "))
				}
				opts.LockPath = cfg.LockPath(archive)
			}

			res, runErr := runner.New(cfg, runner.WithLogger(logger)).Run(cmd.Context(), args, opts)
			if res == nil {
				return runErr
			}
			if record {
				if err := saveHistory(cmd.Context(), ctx, cfg, res); err != nil {
					logging.WarnWithContext(logger, "run history not saved", "history_save_failed",
						logging.String(logging.FieldSessionID, res.ID),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "check state_dir permissions or run `sevenstream history prune`"),
						logging.String(logging.FieldImpact, "run cannot be replayed"),
					)
				}
			}
			summary := runSummary{
				ID:          res.ID,
				Duration:    res.Duration(),
				StdoutBytes: res.StdoutBytes,
				StderrBytes: res.StderrBytes,
			}
			if err := renderer.Finish(res.Record, summary); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("7-Zip failed: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataType, "data-type", "", "Force the body format (symbol, hash, list, techList) instead of inferring it")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print events as JSON lines")
	cmd.Flags().StringVar(&lockPath, "lock", "", "Lock file held for the duration of the run")
	cmd.Flags().BoolVar(&lockArchive, "lock-archive", false, "Lock the archive named in the arguments")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the history")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Override the configured run timeout")
	return cmd
}

// archiveArgument returns the archive path in a 7-Zip command line: the
// first non-switch argument after the command letter.
func archiveArgument(args []string) (string, bool) {
	if len(args) < 2 {
		return "", false
	}
	for _, arg := range args[1:] {
		if arg == "" || strings.HasPrefix(arg, "-") {
			continue
		}
		return arg, true
	}
	return "", false
}

func saveHistory(ctx context.Context, cmdCtx *commandContext, cfg *config.Config, res *runner.Result) error {
	store, err := cmdCtx.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	run := history.NewRun(res.ID, res.Binary, res.Args, res.Record, res.Started, res.Finished)
	run.EntryCount = res.Entries
	run.StdoutBytes = res.StdoutBytes
	run.StderrBytes = res.StderrBytes

	var encoded *transcript.Encoded
	if res.Transcript != nil {
		compression, err := transcript.ParseCompression(cfg.History.Compression)
		if err != nil {
			return err
		}
		enc, err := transcript.Encode(res.Transcript, compression)
		if err != nil {
			return err
		}
		encoded = &enc
	}
	if err := store.Save(ctx, run, encoded); err != nil {
		return err
	}
	if cfg.History.RetentionDays > 0 {
		removed, err := pruneHistory(ctx, store, cfg.History.RetentionDays)
		if err != nil {
			return err
		}
		if removed > 0 {
			if logger, err := cmdCtx.ensureLogger(); err == nil {
				logger.Info("history pruned", logging.Int64("removed", removed), logging.Int("retention_days", cfg.History.RetentionDays))
			}
		}
	}
	return nil
}

func pruneHistory(ctx context.Context, store *history.Store, days int) (int64, error) {
	return store.Prune(ctx, time.Now().AddDate(0, 0, -days))
}
