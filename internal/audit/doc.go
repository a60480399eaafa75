// Package audit relays security events (registrations, logins, resets,
// rate-limit and challenge outcomes) to a sink without blocking the request
// path.
//
// The engine decides what to emit; this package only buffers and delivers.
// Sinks: NoOpSink, ChannelSink, JSONWriterSink, LogrusSink.
package audit
