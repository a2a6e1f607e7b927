package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrtos-tools/schedtrace/internal/timeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleResult() timeline.Result {
	return timeline.Result{
		Matched: []timeline.Match{
			{
				Actual:   timeline.Event{TimestampMS: 240, Task: "Task1", Kind: "RUN"},
				Expected: timeline.Event{TimestampMS: 200, Task: "Task1", Kind: "RUN"},
				OffsetMS: 40,
			},
		},
		Missing:     []timeline.Event{{TimestampMS: 400, Task: "Task2", Kind: "RUN"}},
		Extra:       []timeline.Event{{TimestampMS: 900, Task: "Task3", Kind: "STOP"}},
		ToleranceMS: 50,
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	st := openTestStore(t)
	require.NotNil(t, st)

	require.NoError(t, st.verifyPragma("journal_mode", "wal"))
	require.NoError(t, st.verifyPragma("foreign_keys", "1"))
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestOpenBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "nested", "runs.db"))
	require.Error(t, err)
}

func TestRecordRunRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	meta := RunMeta{
		TestName:     "test_scheduler_rr",
		TracePath:    "logs/log_rr.txt",
		ExpectedPath: "tools/test/expected_timeline_rr.csv",
	}
	id, err := st.RecordRun(ctx, meta, sampleResult())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "test_scheduler_rr", run.TestName)
	assert.Equal(t, "logs/log_rr.txt", run.TracePath)
	assert.Equal(t, int64(50), run.ToleranceMS)
	assert.False(t, run.Passed)
	assert.Equal(t, 1, run.Matched)
	assert.Equal(t, 1, run.Missing)
	assert.Equal(t, 1, run.Extra)
	assert.False(t, run.CreatedAt.IsZero())
}

func TestRecordRunEventRowsPreserveOrderAndNulls(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.RecordRun(ctx, RunMeta{TestName: "rr"}, sampleResult())
	require.NoError(t, err)

	events, err := st.ReadRunEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 3)

	match := events[0]
	assert.Equal(t, timeline.StatusMatch, match.Status)
	require.NotNil(t, match.ActualTS)
	require.NotNil(t, match.ExpectedTS)
	require.NotNil(t, match.OffsetMS)
	assert.Equal(t, int64(240), *match.ActualTS)
	assert.Equal(t, int64(200), *match.ExpectedTS)
	assert.Equal(t, int64(40), *match.OffsetMS)
	assert.Equal(t, "Task1", match.Task)

	missing := events[1]
	assert.Equal(t, timeline.StatusMissing, missing.Status)
	assert.Nil(t, missing.ActualTS)
	require.NotNil(t, missing.ExpectedTS)
	assert.Equal(t, int64(400), *missing.ExpectedTS)
	assert.Nil(t, missing.OffsetMS)

	extra := events[2]
	assert.Equal(t, timeline.StatusExtra, extra.Status)
	require.NotNil(t, extra.ActualTS)
	assert.Equal(t, int64(900), *extra.ActualTS)
	assert.Nil(t, extra.ExpectedTS)
	assert.Nil(t, extra.OffsetMS)
}

func TestRecordRunPassedVerdict(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	result := timeline.Result{
		Matched: []timeline.Match{
			{
				Actual:   timeline.Event{TimestampMS: 0, Task: "Task1", Kind: "START"},
				Expected: timeline.Event{TimestampMS: 0, Task: "Task1", Kind: "START"},
			},
		},
		ToleranceMS: 50,
	}
	_, err := st.RecordRun(ctx, RunMeta{TestName: "ok"}, result)
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Passed)
}

func TestListRunsLimit(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := st.RecordRun(ctx, RunMeta{TestName: "rr"}, timeline.Result{ToleranceMS: 50})
		require.NoError(t, err)
	}

	runs, err := st.ListRuns(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	runs, err = st.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 5)
}

func TestReadRunEventsUnknownRun(t *testing.T) {
	st := openTestStore(t)

	events, err := st.ReadRunEvents(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, events)
}
