// Package credential holds the persistent model of the credential subsystem
// (accounts, refresh credentials, block records) and the store contracts the
// engine depends on.
//
// # Store guarantees
//
// Implementations must enforce email and nickname uniqueness themselves, and
// must make MarkVerified, ConsumePasswordReset, RevokeRefreshCredential, and
// RotateRefreshCredential atomic with respect to their stated condition.
// Concurrent callers are resolved by the store, never by a read-then-write in
// the engine.
//
// Implementations: credential/memstore (in-process) and credential/sqlstore
// (Postgres or MySQL through sqlx).
package credential
