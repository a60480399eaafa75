// Package metrics holds the engine's lock-free counters and its latency
// histogram.
//
// Counters sit in cache-line-padded uint64 slots and are bumped with
// sync/atomic. The histogram has eight fixed buckets from 5ms to +Inf.
// Exporters in metrics/export read Snapshot values and the name tables in
// defs.go.
package metrics
