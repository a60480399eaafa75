// Package stores provides short-lived, cache-backed records for the email
// flows: the last-sent markers used to suppress duplicate sends and to report
// the remaining resend cooldown.
//
// # Design
//
// A marker's value is the UTC send instant (RFC 3339, nanoseconds) and its TTL
// is the cooldown. Remaining cooldown is computed from the stored instant and
// the caller's clock, so an injected clock stays authoritative even while the
// cache key is still alive.
//
// # What this package must NOT do
//
//   - Import marketAuth or any sibling internal package except internal/kv.
//   - Store tokens, secrets, or email addresses in values.
package stores
