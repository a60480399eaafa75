// Package refresh issues and rotates long-lived refresh credentials.
//
// Raw tokens are 256-bit opaque strings returned exactly once; the store only
// ever sees their SHA-256. Rotation revokes the presented credential and
// inserts its successor in one store transaction, so at most one of two
// concurrent rotations of the same token succeeds.
package refresh
