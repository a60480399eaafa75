// Package marketAuth is the credential subsystem of a marketplace backend. It
// issues and validates email-verification and password-reset links, rotates
// opaque refresh credentials alongside short-lived JWT access tokens, and
// guards the abuse-prone flows with fixed-window rate limits and an
// escalating human-verification challenge.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// marketAuth is the public surface. It exposes [Engine], [Builder], [Config],
// and result types. Persistence sits behind credential.Store, outbound mail
// behind [EmailDispatcher], and proof checking behind challenge.Verifier.
// Rate-limit counters and send markers live in Redis, reached through the
// client given to [Builder.WithRedis].
//
// # Flow ordering
//
// Every operation runs its policy checks (token validity, block records,
// rate limits, challenge) before any mutation, and calls the mail
// dispatcher only after those checks pass. Password reset requests answer
// identically whether or not an email was sent.
//
// # Errors
//
// Callers match outcomes with errors.Is against the sentinels in this
// package. [UnverifiedError], [BlockedError], and [RateLimitError] carry the
// data the caller needs to render a response. Store, cache, and mailer
// failures surface only as [ErrInternal] and are logged through logrus.
package marketAuth
