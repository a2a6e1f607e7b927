// Package timeline compares a captured task execution timeline against a
// hand-authored expected schedule.
//
// Actual events come from TASK-level trace records; expected events come
// from a reference CSV. Match aligns the two under a symmetric millisecond
// tolerance window and partitions every event into matched, missing, or
// extra. The verdict is expectation-driven: only unmet expectations fail a
// run, unexpected-but-harmless extra events never do.
package timeline
