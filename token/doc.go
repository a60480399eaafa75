// Package token issues and validates the opaque single-purpose tokens used by
// email verification and password reset.
//
// # Variants
//
// [VerificationToken] is searchable: the stored form is the raw value, so the
// store can look an account up by it directly. [ResetToken] is secret at rest:
// the stored form is hex(sha256(raw)) and the raw value exists only in the
// return of [IssueReset]. Both carry an absolute expiry and satisfy [Token].
//
// Every token is 32 bytes from crypto/rand encoded as unpadded base64url.
//
// # What this package must NOT do
//
//   - Access the credential store or the cache.
//   - Report why validation failed. Absent, mismatched, and expired tokens
//     are one outcome.
package token
