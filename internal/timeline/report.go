package timeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Row status values in the results CSV export.
const (
	StatusMatch   = "MATCH"
	StatusMissing = "MISSING"
	StatusExtra   = "EXTRA"
)

// Report is the structured diagnostic for one comparison run. Building a
// report has no side effect; rendering and persistence belong to the
// caller.
type Report struct {
	TestName    string  `json:"test_name"`
	Passed      bool    `json:"passed"`
	ToleranceMS int64   `json:"tolerance_ms"`
	Expected    int     `json:"expected"`
	Matched     []Match `json:"matched"`
	Missing     []Event `json:"missing"`
	Extra       []Event `json:"extra"`
}

// BuildReport derives the verdict and itemized sections from a comparison
// result.
func BuildReport(testName string, r Result) Report {
	return Report{
		TestName:    testName,
		Passed:      r.Passed(),
		ToleranceMS: r.ToleranceMS,
		Expected:    r.ExpectedTotal(),
		Matched:     r.Matched,
		Missing:     r.Missing,
		Extra:       r.Extra,
	}
}

// Render writes the human-readable report form.
func (rep Report) Render(w io.Writer) {
	rule := strings.Repeat("=", 50)
	section := strings.Repeat("-", 40)

	fmt.Fprintf(w, "SCHEDULER TEST: %s\n", rep.TestName)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	verdict := "FAIL"
	if rep.Passed {
		verdict = "PASS"
	}
	fmt.Fprintf(w, "RESULT: %s\n", verdict)
	fmt.Fprintf(w, "Matched: %d/%d expected events\n", len(rep.Matched), rep.Expected)
	fmt.Fprintf(w, "Missing: %d events\n", len(rep.Missing))
	fmt.Fprintf(w, "Extra: %d events\n", len(rep.Extra))
	fmt.Fprintf(w, "Tolerance: ±%dms\n", rep.ToleranceMS)

	if len(rep.Matched) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Matched Events:")
		fmt.Fprintln(w, section)
		for _, m := range rep.Matched {
			fmt.Fprintf(w, "  %8dms %-8s %-8s [expected: %dms, offset: %+dms] ✓\n",
				m.Actual.TimestampMS, m.Actual.Task, m.Actual.Kind,
				m.Expected.TimestampMS, m.OffsetMS)
		}
	}

	if len(rep.Missing) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Missing Events (EXPECTED but not found):")
		fmt.Fprintln(w, section)
		for _, e := range rep.Missing {
			fmt.Fprintf(w, "  %8dms %-8s %-8s ✗\n", e.TimestampMS, e.Task, e.Kind)
		}
	}

	if len(rep.Extra) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Extra Events (ACTUAL but not expected):")
		fmt.Fprintln(w, section)
		for _, e := range rep.Extra {
			fmt.Fprintf(w, "  %8dms %-8s %-8s ?\n", e.TimestampMS, e.Task, e.Kind)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
}

// WriteResultsCSV exports the comparison result in the tabular results
// format: status,actual_ts,expected_ts,offset_ms,task_name,event. Fields
// that do not apply to a row (the actual timestamp of a MISSING row, the
// expected timestamp of an EXTRA row) are left empty.
func WriteResultsCSV(w io.Writer, r Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"status", "actual_ts", "expected_ts", "offset_ms", "task_name", "event"}); err != nil {
		return fmt.Errorf("write results csv: %w", err)
	}

	for _, m := range r.Matched {
		row := []string{
			StatusMatch,
			strconv.FormatInt(m.Actual.TimestampMS, 10),
			strconv.FormatInt(m.Expected.TimestampMS, 10),
			strconv.FormatInt(m.OffsetMS, 10),
			m.Actual.Task,
			m.Actual.Kind,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write results csv: %w", err)
		}
	}

	for _, e := range r.Missing {
		row := []string{StatusMissing, "", strconv.FormatInt(e.TimestampMS, 10), "", e.Task, e.Kind}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write results csv: %w", err)
		}
	}

	for _, e := range r.Extra {
		row := []string{StatusExtra, strconv.FormatInt(e.TimestampMS, 10), "", "", e.Task, e.Kind}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write results csv: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write results csv: %w", err)
	}
	return nil
}
