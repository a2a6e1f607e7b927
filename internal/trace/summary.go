package trace

// SummaryInfo aggregates parse statistics for display after a capture or
// parse run.
type SummaryInfo struct {
	TotalEntries int            `json:"total_entries"`
	TaskEvents   int            `json:"task_events"`
	Tasks        []string       `json:"tasks"` // first-seen order
	TaskCounts   map[string]int `json:"task_counts"` // task events per task

	// Task-event time range; valid only when TaskEvents > 0.
	FirstTS int64 `json:"first_ts_ms"`
	LastTS  int64 `json:"last_ts_ms"`
}

// Summarize computes parse statistics over a record sequence. The time
// range covers TASK-level records only, in file order.
func Summarize(records []Record) SummaryInfo {
	taskEvents := FilterTaskEvents(records)

	info := SummaryInfo{
		TotalEntries: len(records),
		TaskEvents:   len(taskEvents),
		TaskCounts:   make(map[string]int),
	}

	seen := make(map[string]bool)
	for _, r := range taskEvents {
		info.TaskCounts[r.Context]++
		if !seen[r.Context] {
			seen[r.Context] = true
			info.Tasks = append(info.Tasks, r.Context)
		}
	}

	if len(taskEvents) > 0 {
		info.FirstTS = taskEvents[0].TimestampMS
		info.LastTS = taskEvents[len(taskEvents)-1].TimestampMS
	}

	return info
}
