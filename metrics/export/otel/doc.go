// Package otel exposes shopauth engine metrics through an OpenTelemetry Meter.
//
// [NewOTelExporter] registers observable instruments and a single callback
// that reads [shopauth.Engine.MetricsSnapshot] on every collection. The
// caller owns the MeterProvider.
package otel
