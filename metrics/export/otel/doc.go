// Package otel bridges engine counters to an OpenTelemetry Meter.
//
// Each counter becomes an Int64ObservableCounter; the latency histogram is
// flattened into one Int64ObservableGauge per bucket plus a count gauge. The
// caller owns the MeterProvider.
package otel
