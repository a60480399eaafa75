// Package prometheus exposes engine counters through client_golang.
//
// [Exporter] implements prometheus.Collector; register it with any
// Registerer, or mount [Exporter.Handler] which uses a private registry.
// Counters are named marketauth_*_total; the latency histogram is
// marketauth_flow_latency_seconds.
package prometheus
