// Package store provides SQLite-backed persistence for analysis run
// history.
//
// Each recorded run keeps its verdict summary in the runs table and every
// per-event row (MATCH/MISSING/EXTRA) in run_events, so a past comparison
// can be inspected without re-running the capture.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
