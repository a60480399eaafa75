// Package limiters provides the per-action abuse policies built on top of the
// internal/rate counter.
//
// # Limiters
//
//   - [TwoTier]: independent hourly and daily fixed windows per identity.
//   - [NewResendVerificationLimiter]: 5/hour, 15/day by default, keyed by account ID.
//   - [NewPasswordResetLimiter]: 3/hour, 5/day by default, keyed by email.
//
// Both policies count the daily window first. When both would be exceeded,
// the daily rejection is the one reported.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import marketAuth or any sibling internal package except internal/rate.
//   - Decide on challenges or consequences; the engine composes the
//     challenge gate on top of the returned counts.
package limiters
