package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is one recorded analysis run summary.
type Run struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	TestName     string    `json:"test_name"`
	TracePath    string    `json:"trace_path"`
	ExpectedPath string    `json:"expected_path"`
	ToleranceMS  int64     `json:"tolerance_ms"`
	Passed       bool      `json:"passed"`
	Matched      int       `json:"matched"`
	Missing      int       `json:"missing"`
	Extra        int       `json:"extra"`
}

// RunEvent is one itemized result row of a recorded run. Timestamp and
// offset pointers are nil where the results format leaves the field empty
// (a MISSING row has no actual timestamp, an EXTRA row no expected one).
type RunEvent struct {
	Status     string `json:"status"`
	ActualTS   *int64 `json:"actual_ts,omitempty"`
	ExpectedTS *int64 `json:"expected_ts,omitempty"`
	OffsetMS   *int64 `json:"offset_ms,omitempty"`
	Task       string `json:"task_name"`
	Kind       string `json:"event"`
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, created_at, test_name, trace_path, expected_path,
		       tolerance_ms, passed, matched, missing, extra
		FROM runs
		ORDER BY created_at DESC, id ASC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdAt int64
		if err := rows.Scan(&r.ID, &createdAt, &r.TestName, &r.TracePath, &r.ExpectedPath,
			&r.ToleranceMS, &r.Passed, &r.Matched, &r.Missing, &r.Extra); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	return runs, nil
}

// ReadRunEvents returns the itemized rows of one run in insertion order.
func (s *Store) ReadRunEvents(ctx context.Context, runID string) ([]RunEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, actual_ts, expected_ts, offset_ms, task_name, event
		FROM run_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read run events: %w", err)
	}
	defer rows.Close()

	var events []RunEvent
	for rows.Next() {
		var ev RunEvent
		var actualTS, expectedTS, offsetMS sql.NullInt64
		if err := rows.Scan(&ev.Status, &actualTS, &expectedTS, &offsetMS, &ev.Task, &ev.Kind); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		if actualTS.Valid {
			v := actualTS.Int64
			ev.ActualTS = &v
		}
		if expectedTS.Valid {
			v := expectedTS.Int64
			ev.ExpectedTS = &v
		}
		if offsetMS.Valid {
			v := offsetMS.Int64
			ev.OffsetMS = &v
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read run events: %w", err)
	}

	return events, nil
}
