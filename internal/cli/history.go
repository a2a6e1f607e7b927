package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vrtos-tools/schedtrace/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	RunID    string
}

// HistoryResult is the JSON payload for the history command.
type HistoryResult struct {
	Runs   []store.Run      `json:"runs"`
	Events []store.RunEvent `json:"events,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analysis runs",
		Long: `List analysis runs recorded with --db, newest first.

With --run, shows the itemized result rows of a single run instead.

Examples:
  schedtrace history --db runs.db
  schedtrace history --db runs.db --limit 5
  schedtrace history --db runs.db --run 2f6c0c4e-... `,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 = all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the itemized rows of this run")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.RunID != "" {
		return showRunEvents(ctx, st, opts, cmd)
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		return outputJSON(cmd, CLIResponse{Status: "ok", Data: HistoryResult{Runs: runs}})
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	for _, r := range runs {
		verdict := "FAIL"
		if r.Passed {
			verdict = "PASS"
		}
		fmt.Fprintf(w, "%s  %s  %-4s  %s  matched %d/%d, extra %d (±%dms)\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			verdict,
			r.TestName,
			r.Matched, r.Matched+r.Missing, r.Extra, r.ToleranceMS)
	}
	return nil
}

// showRunEvents prints the itemized rows of one recorded run.
func showRunEvents(ctx context.Context, st *store.Store, opts *HistoryOptions, cmd *cobra.Command) error {
	events, err := st.ReadRunEvents(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run events", err)
	}

	if opts.Format == "json" {
		return outputJSON(cmd, CLIResponse{Status: "ok", Data: HistoryResult{Events: events}})
	}

	w := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintf(w, "No events found for run: %s\n", opts.RunID)
		return nil
	}

	for _, ev := range events {
		fmt.Fprintf(w, "%-8s %10s %10s %8s  %-8s %s\n",
			ev.Status,
			formatTS(ev.ActualTS), formatTS(ev.ExpectedTS), formatOffset(ev.OffsetMS),
			ev.Task, ev.Kind)
	}
	return nil
}

func formatTS(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%dms", *v)
}

func formatOffset(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+dms", *v)
}
