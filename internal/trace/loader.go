package trace

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// csvColumns is the column order of the tabular trace format written by
// WriteCSV and consumed by LoadCSV.
var csvColumns = []string{"timestamp_ms", "level", "file", "line", "function", "event", "context"}

// LoadFile reads a raw device trace and returns every well-formed record in
// original file order. Invalid byte sequences are replaced during decoding
// rather than failing the read; malformed lines are dropped. An empty
// result is a valid outcome meaning "nothing to analyze".
func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	return ReadRecords(f)
}

// ReadRecords parses a raw trace stream. Serial captures routinely contain
// garbage bytes from device resets, so the stream runs through a UTF-8
// decoder that substitutes invalid sequences instead of erroring.
func ReadRecords(r io.Reader) ([]Record, error) {
	var records []Record

	scanner := bufio.NewScanner(transform.NewReader(r, unicode.UTF8.NewDecoder()))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if rec, ok := ParseLine(scanner.Text()); ok {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("read trace: %w", err)
	}

	return records, nil
}

// LoadCSV reads a pre-tabulated trace (the parse command's output format).
// Column order is taken from the header row; rows with missing columns or
// unparseable numeric fields are skipped, matching the raw parser's
// drop-don't-fail policy.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(transform.NewReader(f, unicode.UTF8.NewDecoder()))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read trace csv: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, fmt.Errorf("read trace csv: %w", err)
		}
		if rec, ok := recordFromRow(row, index); ok {
			records = append(records, rec)
		}
	}

	return records, nil
}

// recordFromRow builds a Record from one CSV row using the header index.
func recordFromRow(row []string, index map[string]int) (Record, bool) {
	field := func(name string) (string, bool) {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return row[i], true
	}

	tsField, ok := field("timestamp_ms")
	if !ok {
		return Record{}, false
	}
	ts, err := strconv.ParseInt(tsField, 10, 64)
	if err != nil || ts < 0 {
		return Record{}, false
	}

	lineField, ok := field("line")
	if !ok {
		return Record{}, false
	}
	ln, err := strconv.Atoi(lineField)
	if err != nil {
		return Record{}, false
	}

	level, ok1 := field("level")
	file, ok2 := field("file")
	function, ok3 := field("function")
	event, ok4 := field("event")
	context, ok5 := field("context")
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return Record{}, false
	}

	return Record{
		TimestampMS: ts,
		Level:       level,
		File:        filepath.Base(file),
		Line:        ln,
		Function:    function,
		Event:       event,
		Context:     context,
	}, true
}

// WriteCSV writes records in the tabular trace format: a header row
// followed by one row per record.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return fmt.Errorf("write trace csv: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.TimestampMS, 10),
			r.Level,
			r.File,
			strconv.Itoa(r.Line),
			r.Function,
			r.Event,
			r.Context,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write trace csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write trace csv: %w", err)
	}
	return nil
}
