package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vrtos-tools/schedtrace/internal/capture"
	"github.com/vrtos-tools/schedtrace/internal/config"
	"github.com/vrtos-tools/schedtrace/internal/store"
	"github.com/vrtos-tools/schedtrace/internal/timeline"
	"github.com/vrtos-tools/schedtrace/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath   string
	DurationSec  int
	ToleranceMS  int64
	SkipUpload   bool
	SkipAnalysis bool
	Database     string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <environment>",
		Short: "Upload, capture, parse, and analyze in one step",
		Long: `Run a complete scheduler test for a firmware environment.

Builds and uploads the firmware via the external tool, captures serial
output until the firmware signals completion (or the duration cap is
hit), parses the capture, and analyzes it against the environment's
expected timeline. The expected timeline is resolved from the configured
timeline directory by environment name; if it does not exist, the
comparison trivially passes and only the capture summary is reported.

Exit codes:
  0 - Test passed
  1 - Verification failure (missing expected events, empty capture)
  2 - Command error (config, upload, or capture failure)

Examples:
  schedtrace run test_scheduler_rr
  schedtrace run test_scheduler_preemptive --duration 15 --skip-upload
  schedtrace run test_scheduler_cooperative --skip-analysis`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", config.DefaultPath, "path to the run configuration file")
	cmd.Flags().IntVar(&opts.DurationSec, "duration", 0, "capture duration cap in seconds (0 = use config)")
	cmd.Flags().Int64Var(&opts.ToleranceMS, "tolerance", -1, "timing tolerance in milliseconds (-1 = use config)")
	cmd.Flags().BoolVar(&opts.SkipUpload, "skip-upload", false, "skip firmware build and upload")
	cmd.Flags().BoolVar(&opts.SkipAnalysis, "skip-analysis", false, "capture and parse only")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")

	return cmd
}

func runTest(opts *RunOptions, env string, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if opts.DurationSec > 0 {
		cfg.DurationSec = opts.DurationSec
	}
	if opts.ToleranceMS >= 0 {
		cfg.ToleranceMS = opts.ToleranceMS
	}

	log := newRunLogger(opts.Verbose, cmd.ErrOrStderr())
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create output directory", err)
	}

	stamp := time.Now().Format("20060102_150405")
	logPath := filepath.Join(cfg.OutputDir, fmt.Sprintf("log_%s_%s.txt", env, stamp))
	csvPath := filepath.Join(cfg.OutputDir, fmt.Sprintf("log_%s_%s.csv", env, stamp))

	runner := &capture.Runner{Tool: cfg.Tool, ProjectDir: cfg.ProjectDir, Log: log}

	if !opts.SkipUpload {
		if err := runner.Upload(ctx, env); err != nil {
			return WrapExitError(ExitCommandError, "upload failed", err)
		}
	}

	duration := time.Duration(cfg.DurationSec) * time.Second
	lines, complete, err := runner.Capture(ctx, env, duration, logPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "capture failed", err)
	}

	w := cmd.OutOrStdout()
	status := fmt.Sprintf("captured %ds", cfg.DurationSec)
	if complete {
		status = "complete"
	}
	fmt.Fprintf(w, "Captured %d lines (%s) to %s\n", lines, status, logPath)

	records, err := trace.LoadFile(logPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to parse capture", err)
	}
	if len(records) == 0 {
		// An empty capture after a started monitor signals a capture
		// failure, not a usage error.
		return NewExitError(ExitFailure, fmt.Sprintf("no valid trace entries captured in %s", logPath))
	}

	if err := writeParsedCSV(csvPath, records); err != nil {
		return WrapExitError(ExitCommandError, "failed to write parsed CSV", err)
	}
	log.Debugw("parsed capture", "entries", len(records), "csv", csvPath)

	if opts.SkipAnalysis {
		return outputRunSummary(opts, cmd, records, csvPath)
	}

	expectedPath := cfg.ExpectedTimelinePath(env)
	expected, err := timeline.LoadExpected(expectedPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load expected timeline", err)
	}
	if len(expected) == 0 {
		log.Infow("no expected timeline configured", "path", expectedPath)
	}

	actual := timeline.FromRecords(records)
	result := timeline.Compare(actual, expected, cfg.ToleranceMS)
	report := timeline.BuildReport(env, result)

	var runID string
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open run database", err)
		}
		meta := store.RunMeta{TestName: env, TracePath: logPath, ExpectedPath: expectedPath}
		runID, err = st.RecordRun(ctx, meta, result)
		st.Close()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
	}

	if opts.Format == "json" {
		return outputAnalyzeJSON(cmd, report, runID)
	}

	fmt.Fprintln(w)
	report.Render(w)
	if runID != "" {
		fmt.Fprintf(w, "Run recorded: %s\n", runID)
	}

	if !report.Passed {
		return NewExitError(ExitFailure, fmt.Sprintf("%d expected event(s) missing", len(report.Missing)))
	}
	return nil
}

// writeParsedCSV persists the tabular form of the capture next to the raw
// log.
func writeParsedCSV(path string, records []trace.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := trace.WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// outputRunSummary reports the capture without a verdict (--skip-analysis).
func outputRunSummary(opts *RunOptions, cmd *cobra.Command, records []trace.Record, csvPath string) error {
	summary := trace.Summarize(records)

	if opts.Format == "json" {
		return outputJSON(cmd, CLIResponse{Status: "ok", Data: ParseResult{
			Output:  csvPath,
			Written: len(records),
			Summary: summary,
		}})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Parsed %d entries (%d task events) to %s\n", summary.TotalEntries, summary.TaskEvents, csvPath)
	if summary.TaskEvents > 0 {
		fmt.Fprintf(w, "Time range: %dms - %dms\n", summary.FirstTS, summary.LastTS)
	}
	return nil
}

// newRunLogger builds the orchestration logger. Diagnostics go to stderr
// so captured output and reports stay clean on stdout.
func newRunLogger(verbose bool, w io.Writer) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level)

	return zap.New(core).Sugar()
}
