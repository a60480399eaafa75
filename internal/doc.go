// Package internal contains helper utilities that are intentionally private to
// marketAuth: opaque token generation, token hashing, and crypto-random delays.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - kv: expiring key-value contract and its Redis implementation
//   - limiters: two-tier hourly/daily action policies
//   - metrics: lock-free counters and latency histograms
//   - rate: fixed-window counter and failed-login throttle
//   - stores: last-sent markers for the email flows
//
// # What this package must NOT do
//
//   - Export types that appear in the public marketAuth API.
//   - Be imported by any package outside the marketAuth module.
package internal
