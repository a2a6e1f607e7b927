package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runFixture is a temp project layout for the run command: a stub
// build/flash/monitor tool, a config pointing at it, and a timeline
// directory.
type runFixture struct {
	dir         string
	configPath  string
	outputDir   string
	timelineDir string
}

// newRunFixture writes a stub tool whose "device monitor" invocation
// prints monitorOutput, plus a matching config file. The "run" (upload)
// invocation succeeds unless uploadFails is set.
func newRunFixture(t *testing.T, monitorOutput string, uploadFails bool) runFixture {
	t.Helper()
	dir := t.TempDir()

	uploadCmd := "exit 0"
	if uploadFails {
		uploadCmd = "echo 'build error'; exit 1"
	}
	script := fmt.Sprintf(`#!/bin/sh
case "$1" in
  run) %s ;;
  device) printf '%%b' %q ;;
esac
`, uploadCmd, monitorOutput)

	toolPath := filepath.Join(dir, "stubtool")
	require.NoError(t, os.WriteFile(toolPath, []byte(script), 0o755))

	f := runFixture{
		dir:         dir,
		configPath:  filepath.Join(dir, "schedtrace.yaml"),
		outputDir:   filepath.Join(dir, "logs"),
		timelineDir: filepath.Join(dir, "timelines"),
	}
	require.NoError(t, os.MkdirAll(f.timelineDir, 0o755))

	config := fmt.Sprintf("tool: %s\nproject_dir: %s\noutput_dir: %s\ntimeline_dir: %s\nduration_sec: 5\ntolerance_ms: 50\n",
		toolPath, dir, f.outputDir, f.timelineDir)
	require.NoError(t, os.WriteFile(f.configPath, []byte(config), 0o644))

	return f
}

// writeTimeline places an expected timeline CSV for the given environment.
func (f runFixture) writeTimeline(t *testing.T, env, content string) {
	t.Helper()
	cfgName := "expected_timeline_" + env[len("test_scheduler_"):] + ".csv"
	require.NoError(t, os.WriteFile(filepath.Join(f.timelineDir, cfgName), []byte(content), 0o644))
}

func executeRun(t *testing.T, f runFixture, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", f.configPath}, args...))
	return out, cmd.Execute()
}

const stubMonitorOutput = "1000\tTASK\tsched.c\t10\tscheduler_tick\tSTART\tTask1\n" +
	"1100\tTASK\tsched.c\t11\tscheduler_tick\tRUN\tTask1\n" +
	"5000\tTASK\tsched.c\t99\ttest_done\tTIMEOUT\tTask1\n"

func TestRunFullPass(t *testing.T) {
	f := newRunFixture(t, stubMonitorOutput, false)
	f.writeTimeline(t, "test_scheduler_rr", "timestamp_ms,task_name,event\n1000,Task1,START\n1100,Task1,RUN\n")

	out, err := executeRun(t, f, "test_scheduler_rr")
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Captured 3 lines (complete)")
	assert.Contains(t, out.String(), "RESULT: PASS")
	assert.Contains(t, out.String(), "Matched: 2/2 expected events")

	logs, globErr := filepath.Glob(filepath.Join(f.outputDir, "log_test_scheduler_rr_*.txt"))
	require.NoError(t, globErr)
	require.Len(t, logs, 1)

	csvs, globErr := filepath.Glob(filepath.Join(f.outputDir, "log_test_scheduler_rr_*.csv"))
	require.NoError(t, globErr)
	require.Len(t, csvs, 1)
}

func TestRunFailsOnMissingEvents(t *testing.T) {
	f := newRunFixture(t, stubMonitorOutput, false)
	f.writeTimeline(t, "test_scheduler_rr", "timestamp_ms,task_name,event\n1000,Task1,START\n2000,Task2,START\n")

	out, err := executeRun(t, f, "test_scheduler_rr")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out.String(), "RESULT: FAIL")
}

func TestRunNoExpectedTimeline(t *testing.T) {
	f := newRunFixture(t, stubMonitorOutput, false)

	out, err := executeRun(t, f, "test_scheduler_rr")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "RESULT: PASS")
	assert.Contains(t, out.String(), "Matched: 0/0 expected events")
}

func TestRunSkipAnalysis(t *testing.T) {
	f := newRunFixture(t, stubMonitorOutput, false)

	out, err := executeRun(t, f, "--skip-analysis", "test_scheduler_rr")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Parsed 3 entries (3 task events)")
	assert.NotContains(t, out.String(), "RESULT:")
}

func TestRunEmptyCapture(t *testing.T) {
	f := newRunFixture(t, "monitor noise, nothing parseable\n", false)

	_, err := executeRun(t, f, "test_scheduler_rr")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "no valid trace entries captured")
}

func TestRunUploadFailure(t *testing.T) {
	f := newRunFixture(t, stubMonitorOutput, true)

	_, err := executeRun(t, f, "test_scheduler_rr")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "upload failed")
	assert.Contains(t, err.Error(), "build error")
}

func TestRunSkipUploadBypassesBrokenUpload(t *testing.T) {
	f := newRunFixture(t, stubMonitorOutput, true)

	out, err := executeRun(t, f, "--skip-upload", "test_scheduler_rr")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "RESULT: PASS")
}

func TestRunInvalidConfig(t *testing.T) {
	f := newRunFixture(t, stubMonitorOutput, false)
	require.NoError(t, os.WriteFile(f.configPath, []byte("duration_sec: -1\n"), 0o644))

	_, err := executeRun(t, f, "test_scheduler_rr")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestRunRecordsRun(t *testing.T) {
	f := newRunFixture(t, stubMonitorOutput, false)
	f.writeTimeline(t, "test_scheduler_rr", "timestamp_ms,task_name,event\n1000,Task1,START\n")
	dbPath := filepath.Join(f.dir, "runs.db")

	out, err := executeRun(t, f, "--db", dbPath, "test_scheduler_rr")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Run recorded: ")

	_, statErr := os.Stat(dbPath)
	assert.NoError(t, statErr)
}
