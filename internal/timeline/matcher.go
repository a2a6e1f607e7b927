package timeline

// Match is one matched (actual, expected) pair. OffsetMS is actual minus
// expected: positive means the task ran late, negative means early.
type Match struct {
	Actual   Event `json:"actual"`
	Expected Event `json:"expected"`
	OffsetMS int64 `json:"offset_ms"`
}

// Result partitions one comparison run. Every expected event lands in
// exactly one of Matched or Missing; every actual event in exactly one of
// Matched or Extra. A Result is produced once per comparison and owned by
// the caller.
type Result struct {
	Matched     []Match `json:"matched"`
	Missing     []Event `json:"missing"`
	Extra       []Event `json:"extra"`
	ToleranceMS int64   `json:"tolerance_ms"`
}

// Passed reports the verdict. Only unmet expectations fail a run; extra
// events are unexpected-but-harmless and never fail by themselves. An
// empty expected set trivially passes.
func (r Result) Passed() bool {
	return len(r.Missing) == 0
}

// ExpectedTotal returns the number of expected events the comparison
// covered (matched plus missing).
func (r Result) ExpectedTotal() int {
	return len(r.Matched) + len(r.Missing)
}

// Compare aligns actual events against expected events under a symmetric
// tolerance window.
//
// Matching is expected-driven, greedy, and order-preserving: expected
// events are visited in ascending timestamp order (guaranteed by the
// loader) and each takes the first unconsumed actual event with the same
// task and event kind whose timestamp lies within toleranceMS. Ties inside
// the window go to the earliest unconsumed actual occurrence. No actual
// event satisfies two expectations, so duplicate expected entries each
// need their own actual counterpart. A zero tolerance requires exact
// timestamp equality.
//
// Compare never mutates its inputs; identical inputs always produce
// identical results. First-fit can pair a distant in-window occurrence
// where a closer one exists later in the scan, so pairings are not
// guaranteed to minimize total offset.
func Compare(actual, expected []Event, toleranceMS int64) Result {
	result := Result{ToleranceMS: toleranceMS}
	consumed := make(map[int]struct{}, len(expected))

	for _, exp := range expected {
		found := -1
		for i, act := range actual {
			if _, taken := consumed[i]; taken {
				continue
			}
			if act.Task != exp.Task || act.Kind != exp.Kind {
				continue
			}
			if abs64(act.TimestampMS-exp.TimestampMS) > toleranceMS {
				continue
			}
			found = i
			break
		}

		if found < 0 {
			result.Missing = append(result.Missing, exp)
			continue
		}

		consumed[found] = struct{}{}
		result.Matched = append(result.Matched, Match{
			Actual:   actual[found],
			Expected: exp,
			OffsetMS: actual[found].TimestampMS - exp.TimestampMS,
		})
	}

	for i, act := range actual {
		if _, taken := consumed[i]; !taken {
			result.Extra = append(result.Extra, act)
		}
	}

	return result
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
