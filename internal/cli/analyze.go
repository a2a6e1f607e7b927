package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vrtos-tools/schedtrace/internal/store"
	"github.com/vrtos-tools/schedtrace/internal/timeline"
	"github.com/vrtos-tools/schedtrace/internal/trace"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	ToleranceMS int64
	Output      string
	TestName    string
	Database    string
}

// AnalyzeResult is the JSON payload for the analyze command.
type AnalyzeResult struct {
	Report timeline.Report `json:"report"`
	RunID  string          `json:"run_id,omitempty"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <actual> <expected.csv>",
		Short: "Compare a captured timeline against an expected one",
		Long: `Compare captured task lifecycle events against an expected timeline.

The actual trace may be raw (tab-delimited device output) or tabular
(the parse command's CSV); the format is detected from the content.
A missing expected timeline means no expectations are configured and
the comparison trivially passes. A missing actual trace is fatal.

Extra events never fail a run by themselves - only unmet expectations do.

Exit codes:
  0 - All expected events matched (or no expectations configured)
  1 - One or more expected events missing
  2 - Command error (actual trace missing, bad flags, etc.)

Examples:
  schedtrace analyze logs/capture.txt tools/test/expected_timeline_rr.csv
  schedtrace analyze capture_parsed.csv expected.csv --tolerance 25
  schedtrace analyze capture.txt expected.csv --output results.csv --db runs.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.ToleranceMS, "tolerance", 50, "timing tolerance in milliseconds")
	cmd.Flags().StringVar(&opts.Output, "output", "", "write results CSV to this path")
	cmd.Flags().StringVar(&opts.TestName, "test-name", "Scheduler", "test name for the report")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, actualPath, expectedPath string, cmd *cobra.Command) error {
	if opts.ToleranceMS < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("tolerance must be non-negative, got %d", opts.ToleranceMS))
	}

	actual, err := loadActualEvents(actualPath)
	if err != nil {
		return err
	}

	expected, err := timeline.LoadExpected(expectedPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load expected timeline", err)
	}

	if opts.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "loaded %d actual task event(s), %d expected event(s)\n", len(actual), len(expected))
	}
	if len(actual) == 0 && len(expected) > 0 {
		// Capture failure and "legitimately nothing happened" look the
		// same here; the verdict below reports every expectation missing.
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: no task events found in %s\n", actualPath)
	}

	result := timeline.Compare(actual, expected, opts.ToleranceMS)
	report := timeline.BuildReport(opts.TestName, result)

	if opts.Output != "" {
		if err := writeResultsFile(opts.Output, result); err != nil {
			return WrapExitError(ExitCommandError, "failed to write results file", err)
		}
	}

	var runID string
	if opts.Database != "" {
		runID, err = recordRun(cmd.Context(), opts, actualPath, expectedPath, result)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
	}

	if opts.Format == "json" {
		return outputAnalyzeJSON(cmd, report, runID)
	}

	report.Render(cmd.OutOrStdout())
	if opts.Output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", opts.Output)
	}
	if runID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Run recorded: %s\n", runID)
	}

	if !report.Passed {
		return NewExitError(ExitFailure, fmt.Sprintf("%d expected event(s) missing", len(report.Missing)))
	}
	return nil
}

// loadActualEvents loads the actual trace, raw or tabular, and projects it
// to task lifecycle events. A missing actual trace is fatal: there is
// nothing to analyze.
func loadActualEvents(path string) ([]timeline.Event, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("actual trace not found: %s", path))
	}

	var (
		records []trace.Record
		err     error
	)
	if isTabularTrace(path) {
		records, err = trace.LoadCSV(path)
	} else {
		records, err = trace.LoadFile(path)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load actual trace", err)
	}

	return timeline.FromRecords(records), nil
}

// isTabularTrace sniffs whether the file is the parse command's CSV
// output rather than a raw device trace.
func isTabularTrace(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(path), ".csv")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return false
	}
	return strings.HasPrefix(scanner.Text(), "timestamp_ms,")
}

// writeResultsFile exports the results CSV.
func writeResultsFile(path string, result timeline.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := timeline.WriteResultsCSV(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// recordRun persists the comparison in the run history database.
func recordRun(ctx context.Context, opts *AnalyzeOptions, actualPath, expectedPath string, result timeline.Result) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return "", err
	}
	defer st.Close()

	meta := store.RunMeta{
		TestName:     opts.TestName,
		TracePath:    actualPath,
		ExpectedPath: expectedPath,
	}
	return st.RecordRun(ctx, meta, result)
}

// outputAnalyzeJSON emits the report envelope. A failed verdict still
// produces a full report but exits non-zero.
func outputAnalyzeJSON(cmd *cobra.Command, report timeline.Report, runID string) error {
	response := CLIResponse{
		Status: "ok",
		Data:   AnalyzeResult{Report: report, RunID: runID},
	}
	if !report.Passed {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeAnalyzeFailed,
			Message: fmt.Sprintf("%d expected event(s) missing", len(report.Missing)),
		}
	}

	if err := outputJSON(cmd, response); err != nil {
		return err
	}
	if !report.Passed {
		return NewExitError(ExitFailure, fmt.Sprintf("%d expected event(s) missing", len(report.Missing)))
	}
	return nil
}
