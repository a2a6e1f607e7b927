package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vrtos-tools/schedtrace/internal/trace"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Output    string
	TasksOnly bool
}

// ParseResult is the JSON payload for the parse command.
type ParseResult struct {
	Input   string            `json:"input"`
	Output  string            `json:"output"`
	Written int               `json:"written"`
	Summary trace.SummaryInfo `json:"summary"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <trace.log>",
		Short: "Convert a raw device trace to tabular form",
		Long: `Parse a raw tab-delimited device trace into structured CSV.

Malformed and blank lines are dropped silently; invalid byte sequences
are substituted. The output CSV keeps the original event order.

Exit codes:
  0 - Trace parsed, at least one valid entry
  1 - No valid trace entries found
  2 - Command error (trace file missing or unreadable)

Examples:
  schedtrace parse logs/capture.txt
  schedtrace parse logs/capture.txt -o capture.csv --tasks-only`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output CSV path (default: <input>_parsed.csv)")
	cmd.Flags().BoolVar(&opts.TasksOnly, "tasks-only", false, "write only TASK-level events")

	return cmd
}

func runParse(opts *ParseOptions, input string, cmd *cobra.Command) error {
	if _, err := os.Stat(input); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("trace file not found: %s", input))
	}

	records, err := trace.LoadFile(input)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	if len(records) == 0 {
		if opts.Format == "json" {
			_ = outputJSON(cmd, CLIResponse{
				Status: "error",
				Error:  &CLIError{Code: ErrCodeEmptyTrace, Message: "no valid trace entries found"},
			})
		}
		return NewExitError(ExitFailure, fmt.Sprintf("no valid trace entries found in %s", input))
	}

	output := opts.Output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "_parsed.csv"
	}

	toWrite := records
	if opts.TasksOnly {
		toWrite = trace.FilterTaskEvents(records)
	}

	f, err := os.Create(output)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create output file", err)
	}
	if err := trace.WriteCSV(f, toWrite); err != nil {
		f.Close()
		return WrapExitError(ExitCommandError, "failed to write output file", err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output file", err)
	}

	summary := trace.Summarize(records)
	result := ParseResult{
		Input:   input,
		Output:  output,
		Written: len(toWrite),
		Summary: summary,
	}

	if opts.Format == "json" {
		return outputJSON(cmd, CLIResponse{Status: "ok", Data: result})
	}

	return outputParseText(cmd, result)
}

// outputParseText renders the parse summary as text.
func outputParseText(cmd *cobra.Command, result ParseResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Wrote %d entries to %s\n", result.Written, result.Output)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Parsing Summary:")
	fmt.Fprintf(w, "  Total entries: %d\n", result.Summary.TotalEntries)
	fmt.Fprintf(w, "  Task events: %d\n", result.Summary.TaskEvents)
	fmt.Fprintf(w, "  Tasks found: %s\n", strings.Join(result.Summary.Tasks, ", "))
	if result.Summary.TaskEvents > 0 {
		fmt.Fprintf(w, "  Time range: %dms - %dms (%dms)\n",
			result.Summary.FirstTS, result.Summary.LastTS,
			result.Summary.LastTS-result.Summary.FirstTS)
	}

	return nil
}
