package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sevenstream/internal/history"
)

const defaultHistoryLimit = 20

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and maintain the run history",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(formatFlag)
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if runs == nil {
				runs = []*history.Run{}
			}
			if handled, err := writeStructured(cmd, format, runs); handled {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					humanize.Time(run.StartedAt),
					string(run.Outcome),
					string(run.DataType),
					strconv.Itoa(run.EntryCount),
					run.Duration().Round(time.Millisecond).String(),
					truncate(strings.Join(run.Args, " "), 48),
				})
			}
			fmt.Fprintln(out, renderTable(tableSpec{
				headers: []string{"ID", "Started", "Outcome", "Type", "Entries", "Duration", "Arguments"},
				rows:    rows,
				aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Maximum number of runs to list (0 for all)")
	cmd.Flags().StringVarP(&formatFlag, "format", "f", "table", "Output format (table, json, yaml)")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run; the id may be abbreviated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(formatFlag)
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if handled, err := writeStructured(cmd, format, run); handled {
				return err
			}

			rows := [][]string{
				{"ID", run.ID},
				{"Binary", run.Binary},
				{"Arguments", strings.Join(run.Args, " ")},
				{"Started", run.StartedAt.Local().Format(time.RFC3339)},
				{"Duration", run.Duration().Round(time.Millisecond).String()},
				{"Outcome", string(run.Outcome)},
				{"Stage", string(run.Stage)},
				{"Data type", string(run.DataType)},
				{"Entries", strconv.Itoa(run.EntryCount)},
				{"Stdout", humanize.Bytes(uint64(run.StdoutBytes))},
				{"Stderr", humanize.Bytes(uint64(run.StderrBytes))},
				{"Transcript", yesNo(run.HasTranscript)},
			}
			if run.Outcome == history.OutcomeError {
				rows = append(rows,
					[]string{"Error source", run.ErrorSource},
					[]string{"Error", run.ErrorMessage},
					[]string{"Exit code", strconv.Itoa(run.ExitCode)},
				)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(tableSpec{title: "Run", headers: []string{"Field", "Value"}, rows: rows}))
			if len(run.Info) > 0 {
				info := make([][]string, 0, len(run.Info))
				for _, pair := range run.Info {
					info = append(info, []string{pair.Key, pair.Value})
				}
				fmt.Fprintln(out, renderTable(tableSpec{title: "Info", headers: []string{"Key", "Value"}, rows: info}))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatFlag, "format", "f", "table", "Output format (table, json, yaml)")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.History.RetentionDays
			}
			if days <= 0 {
				return fmt.Errorf("retention of %d days disables pruning; pass --days", days)
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := pruneHistory(cmd.Context(), store, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s) older than %d days\n", removed, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (defaults to history.retention_days)")
	return cmd
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
