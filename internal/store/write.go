package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vrtos-tools/schedtrace/internal/timeline"
)

// RunMeta describes the inputs of one analysis run.
type RunMeta struct {
	TestName     string
	TracePath    string
	ExpectedPath string
}

// RecordRun persists a comparison result and its per-event rows in one
// transaction and returns the generated run ID.
//
// Event rows are written in report order (matched, then missing, then
// extra) with a monotonic seq, so reading them back reproduces the
// results-CSV row order exactly.
func (s *Store) RecordRun(ctx context.Context, meta RunMeta, result timeline.Result) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, created_at, test_name, trace_path, expected_path, tolerance_ms, passed, matched, missing, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		time.Now().UTC().Unix(),
		meta.TestName,
		meta.TracePath,
		meta.ExpectedPath,
		result.ToleranceMS,
		result.Passed(),
		len(result.Matched),
		len(result.Missing),
		len(result.Extra),
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_events
		(run_id, seq, status, actual_ts, expected_ts, offset_ms, task_name, event)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	defer stmt.Close()

	seq := 0
	for _, m := range result.Matched {
		if _, err := stmt.ExecContext(ctx, id, seq, timeline.StatusMatch,
			m.Actual.TimestampMS, m.Expected.TimestampMS, m.OffsetMS,
			m.Actual.Task, m.Actual.Kind); err != nil {
			return "", fmt.Errorf("record run event: %w", err)
		}
		seq++
	}
	for _, e := range result.Missing {
		if _, err := stmt.ExecContext(ctx, id, seq, timeline.StatusMissing,
			nil, e.TimestampMS, nil, e.Task, e.Kind); err != nil {
			return "", fmt.Errorf("record run event: %w", err)
		}
		seq++
	}
	for _, e := range result.Extra {
		if _, err := stmt.ExecContext(ctx, id, seq, timeline.StatusExtra,
			e.TimestampMS, nil, nil, e.Task, e.Kind); err != nil {
			return "", fmt.Errorf("record run event: %w", err)
		}
		seq++
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	return id, nil
}
