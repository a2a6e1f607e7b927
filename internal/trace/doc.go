// Package trace ingests raw device traces.
//
// A trace is a stream of tab-delimited lines, one event per line:
//
//	timestamp_ms \t level \t file \t line \t function \t event \t context
//
// Parsing is total and tolerant: blank lines, malformed lines, and invalid
// byte sequences never abort a load - bad lines are dropped and bad bytes
// substituted, so a truncated or noisy capture still yields every
// well-formed record it contains. Only the TASK level describes scheduler
// lifecycle transitions; everything else is diagnostic logging.
package trace
