// Package httpapi exposes the marketAuth engine over HTTP using echo.
//
// # Routes
//
// [Register] mounts every credential flow under one echo group. [RequireAccess]
// guards application routes with a bearer access token, and [IPLimiter]
// throttles anonymous traffic per client address.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls and engine errors
// into status codes. It does NOT implement authentication logic itself; all
// decisions are delegated to the engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine.ParseAccessToken).
//   - Access Redis or the credential store.
//   - Reveal whether an email is registered on the password reset route.
package httpapi
