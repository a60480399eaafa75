// Package sqlstore implements credential.Store on Postgres (pgx) or MySQL
// through sqlx. Schema migrations are embedded and applied with goose.
//
// Conditional operations (MarkVerified, ConsumePasswordReset, refresh
// rotation) are single guarded UPDATE statements; a zero row count maps to
// credential.ErrNotFound. Rotation runs the revoke and the insert in one
// transaction.
package sqlstore
