package timeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/vrtos-tools/schedtrace/internal/trace"
)

// Event is the projection used for matching: when it happened, which task,
// and which lifecycle transition. Events are immutable values.
type Event struct {
	TimestampMS int64  `json:"timestamp_ms"`
	Task        string `json:"task_name"`
	Kind        string `json:"event"`
}

// FromRecords projects TASK-level trace records into timeline events,
// preserving original order. The task name travels in the record's context
// field.
func FromRecords(records []trace.Record) []Event {
	var events []Event
	for _, r := range records {
		if r.Level != trace.LevelTask {
			continue
		}
		events = append(events, Event{
			TimestampMS: r.TimestampMS,
			Task:        r.Context,
			Kind:        r.Event,
		})
	}
	return events
}

// LoadExpected loads the reference timeline from a CSV with the header
// timestamp_ms,task_name,event, sorted ascending by timestamp.
//
// A missing file means "no expectation configured" and yields an empty
// timeline without error; the caller treats that as nothing to verify.
// Rows with unparseable timestamps are skipped.
func LoadExpected(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open expected timeline: %w", err)
	}
	defer f.Close()

	events, err := readExpected(f)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].TimestampMS < events[j].TimestampMS
	})
	return events, nil
}

// readExpected parses reference timeline rows from a CSV stream.
func readExpected(r io.Reader) ([]Event, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read expected timeline: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var events []Event
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return events, fmt.Errorf("read expected timeline: %w", err)
		}
		if ev, ok := eventFromRow(row, index); ok {
			events = append(events, ev)
		}
	}

	return events, nil
}

// eventFromRow builds an Event from one reference CSV row.
func eventFromRow(row []string, index map[string]int) (Event, bool) {
	field := func(name string) (string, bool) {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return row[i], true
	}

	tsField, ok := field("timestamp_ms")
	if !ok {
		return Event{}, false
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(tsField), 10, 64)
	if err != nil || ts < 0 {
		return Event{}, false
	}

	task, ok1 := field("task_name")
	kind, ok2 := field("event")
	if !ok1 || !ok2 {
		return Event{}, false
	}

	return Event{TimestampMS: ts, Task: task, Kind: kind}, true
}
