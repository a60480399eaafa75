// Package kv defines the expiring key-value contract used by the limiter and
// marker stores, and its Redis implementation.
//
// # Atomicity
//
// Increment runs INCR and the first-hit PEXPIRE inside one Lua script, so a
// window's reset instant is anchored to the first request even under
// concurrent first hits.
//
// # What this package must NOT do
//
//   - Know about actions, identities, or limits (internal/rate and
//     internal/limiters own key layout and policy).
//   - Be imported outside the marketAuth module.
package kv
