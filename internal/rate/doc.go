// Package rate provides the fixed-window counter used by every marketAuth
// limiter, plus the failed-login throttle.
//
// # Window semantics
//
// Counters are fixed windows: the first hit sets the expiry, later hits leave
// it alone. The retry-after reported to callers is the nominal window length,
// not the true remaining time. Key layout below the configured prefix:
//   - login:<email>                   : failed logins
//   - <action>:<tier>:<identity>      : two-tier action policies (internal/limiters)
//
// # What this package must NOT do
//
//   - Implement per-action policies (those live in internal/limiters).
//   - Be imported outside the marketAuth module.
package rate
