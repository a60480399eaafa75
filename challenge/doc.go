// Package challenge implements CAPTCHA escalation: a stateless [Gate] that
// demands a human-verification proof on exactly the threshold attempt of a
// window, and a [SiteVerifier] that checks proofs against a siteverify HTTP
// endpoint.
//
// # What this package must NOT do
//
//   - Count attempts. The caller passes the current window count in.
//   - Remember successful proofs. Each threshold hit asks again.
package challenge
