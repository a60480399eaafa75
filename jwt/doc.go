// Package jwt signs and verifies short-lived access tokens.
//
// Claims carry the account ID (aid) and the verified flag (ver) next to the
// registered claims; every token gets a random jti. Parsing pins the
// algorithm and, when configured, issuer, audience, and kid.
package jwt
