package timeline

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestBuildReport(t *testing.T) {
	actual := []Event{ev(0, "Task1", "START"), ev(260, "Task1", "RUN")}
	expected := []Event{ev(0, "Task1", "START"), ev(200, "Task1", "RUN")}

	r := Compare(actual, expected, 50)
	rep := BuildReport("rr", r)

	assert.Equal(t, "rr", rep.TestName)
	assert.False(t, rep.Passed)
	assert.Equal(t, int64(50), rep.ToleranceMS)
	assert.Equal(t, 2, rep.Expected)
	assert.Len(t, rep.Matched, 1)
	assert.Len(t, rep.Missing, 1)
	assert.Len(t, rep.Extra, 1)
}

func TestBuildReportEmptyExpectationsPass(t *testing.T) {
	r := Compare([]Event{ev(10, "Task1", "RUN")}, nil, 50)
	rep := BuildReport("empty", r)

	assert.True(t, rep.Passed)
	assert.Zero(t, rep.Expected)
	assert.Len(t, rep.Extra, 1)
}

func TestReportRenderPass(t *testing.T) {
	actual := []Event{
		ev(0, "Task1", "START"),
		ev(240, "Task1", "RUN"),
		ev(500, "Task2", "TICK"),
	}
	expected := []Event{
		ev(0, "Task1", "START"),
		ev(200, "Task1", "RUN"),
	}

	rep := BuildReport("rr_demo", Compare(actual, expected, 50))
	require.True(t, rep.Passed)

	var buf bytes.Buffer
	rep.Render(&buf)
	newGoldie(t).Assert(t, "report_pass", buf.Bytes())
}

func TestReportRenderFail(t *testing.T) {
	actual := []Event{ev(260, "Task1", "RUN")}
	expected := []Event{ev(200, "Task1", "RUN")}

	rep := BuildReport("rr_fail", Compare(actual, expected, 50))
	require.False(t, rep.Passed)

	var buf bytes.Buffer
	rep.Render(&buf)
	newGoldie(t).Assert(t, "report_fail", buf.Bytes())
}

func TestWriteResultsCSV(t *testing.T) {
	actual := []Event{ev(0, "Task1", "START"), ev(260, "Task1", "RUN")}
	expected := []Event{ev(0, "Task1", "START"), ev(200, "Task1", "RUN")}

	r := Compare(actual, expected, 50)

	var buf bytes.Buffer
	require.NoError(t, WriteResultsCSV(&buf, r))
	newGoldie(t).Assert(t, "results", buf.Bytes())
}

func TestWriteResultsCSVEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResultsCSV(&buf, Result{ToleranceMS: 50}))
	assert.Equal(t, "status,actual_ts,expected_ts,offset_ms,task_name,event\n", buf.String())
}
