package trace

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// LevelTask marks records describing a task state transition (START, RUN,
// STOP, TIMEOUT). All other levels are diagnostic logging.
const LevelTask = "TASK"

// linePattern matches one raw tab-delimited trace line:
//
//	timestamp_ms \t level \t file \t line \t function \t event \t context
var linePattern = regexp.MustCompile(`^(\d+)\t(\w+)\t([^\t]+)\t(\d+)\t([^\t]+)\t([^\t]+)\t(.+)$`)

// Record is a single structured trace event emitted by the target device.
// Records are values: created by a parse call and read-only afterward.
type Record struct {
	TimestampMS int64  `json:"timestamp_ms"`
	Level       string `json:"level"`
	File        string `json:"file"` // basename of the emitting source unit
	Line        int    `json:"line"`
	Function    string `json:"function"`
	Event       string `json:"event"`
	Context     string `json:"context"` // task name for TASK-level records
}

// ParseLine parses one raw trace line into a Record.
//
// A line is well-formed only if it splits into exactly seven tab-separated
// fields and both numeric fields parse as non-negative integers. Blank and
// malformed lines report ok=false; they are skippable, never an error.
//
// The file field is reduced to its basename so records compare stably
// across build paths.
func ParseLine(line string) (Record, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Record{}, false
	}

	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false
	}

	ts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Record{}, false
	}
	ln, err := strconv.Atoi(m[4])
	if err != nil {
		return Record{}, false
	}

	return Record{
		TimestampMS: ts,
		Level:       m[2],
		File:        filepath.Base(m[3]),
		Line:        ln,
		Function:    m[5],
		Event:       m[6],
		Context:     m[7],
	}, true
}

// TabLine re-serializes the record in the raw trace line format. Basename
// reduction aside, parsing a well-formed line and re-serializing it
// reproduces the same seven logical fields.
func (r Record) TabLine() string {
	return strings.Join([]string{
		strconv.FormatInt(r.TimestampMS, 10),
		r.Level,
		r.File,
		strconv.Itoa(r.Line),
		r.Function,
		r.Event,
		r.Context,
	}, "\t")
}

// FilterTaskEvents returns the subsequence of TASK-level records,
// preserving order.
func FilterTaskEvents(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if r.Level == LevelTask {
			out = append(out, r)
		}
	}
	return out
}
