// Package capture orchestrates the external build/flash/monitor tool.
//
// The contract toward the analysis core is narrow: a capture produces a
// completed trace file (possibly empty, possibly truncated) before
// handoff. Retry policy lives here, never in the core.
package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// completionMarkers identify the lifecycle TIMEOUT event the firmware
// emits when a test finishes, in both raw and tabular form.
var completionMarkers = []string{"\tTIMEOUT\t", ",TIMEOUT,"}

// Runner drives the external tool for one test environment.
type Runner struct {
	// Tool is the executable to invoke (e.g. "pio").
	Tool string

	// ProjectDir is the working directory for tool invocations.
	ProjectDir string

	// Log receives orchestration diagnostics. Required.
	Log *zap.SugaredLogger
}

// Upload builds the firmware for env and flashes it to the device. The
// tool's combined output is surfaced on failure.
func (r *Runner) Upload(ctx context.Context, env string) error {
	r.Log.Infow("building and uploading firmware", "environment", env)

	cmd := exec.CommandContext(ctx, r.Tool, "run", "--target", "upload", "--environment", env)
	cmd.Dir = r.ProjectDir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("upload %s: %w: %s", env, err, lastLines(out, 5))
	}

	r.Log.Infow("upload complete", "environment", env)
	return nil
}

// Capture runs the serial monitor for env and writes its output to
// outPath, line by line, for at most maxDuration. Capture stops early once
// the firmware's completion marker is seen.
//
// Returns the number of lines written and whether the completion marker
// was observed. Hitting the duration cap is not an error: a truncated
// capture is a valid handoff and degrades to "everything missing"
// downstream.
func (r *Runner) Capture(ctx context.Context, env string, maxDuration time.Duration, outPath string) (int, bool, error) {
	r.Log.Infow("starting serial capture", "environment", env, "max_duration", maxDuration, "output", outPath)

	ctx, cancel := context.WithTimeout(ctx, maxDuration)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Tool, "device", "monitor", "--environment", env)
	cmd.Dir = r.ProjectDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, false, fmt.Errorf("capture %s: %w", env, err)
	}
	cmd.Stderr = cmd.Stdout

	out, err := os.Create(outPath)
	if err != nil {
		return 0, false, fmt.Errorf("capture %s: %w", env, err)
	}
	defer out.Close()

	if err := cmd.Start(); err != nil {
		return 0, false, fmt.Errorf("capture %s: start monitor: %w", env, err)
	}

	lines, complete := copyUntilComplete(stdout, out)
	if complete {
		r.Log.Debugw("completion marker detected, stopping capture")
		cancel()
	}

	// The monitor is killed by context cancellation in the normal case, so
	// its exit status carries no signal. Only a failure to run at all
	// matters, and Start caught that above.
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		r.Log.Warnw("monitor exited abnormally", "error", err)
	}

	if err := out.Sync(); err != nil {
		return lines, complete, fmt.Errorf("capture %s: flush output: %w", env, err)
	}

	r.Log.Infow("capture finished", "lines", lines, "complete", complete)
	return lines, complete, nil
}

// copyUntilComplete copies monitor output line by line until EOF or the
// completion marker. Returns the line count and whether the marker was
// seen. Write errors end the copy early; whatever was written remains a
// valid partial capture.
func copyUntilComplete(r io.Reader, w io.Writer) (int, bool) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines := 0
	for scanner.Scan() {
		line := scanner.Text()
		if _, err := fmt.Fprintln(w, line); err != nil {
			return lines, false
		}
		lines++
		if isComplete(line) {
			return lines, true
		}
	}
	return lines, false
}

// isComplete reports whether a captured line carries the test completion
// marker.
func isComplete(line string) bool {
	for _, marker := range completionMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// lastLines returns up to n trailing non-empty lines of tool output for
// error messages.
func lastLines(out []byte, n int) string {
	all := strings.Split(strings.TrimSpace(string(out)), "\n")
	var kept []string
	for _, line := range all {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "\n")
}
