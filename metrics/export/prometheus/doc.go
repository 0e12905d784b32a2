// Package prometheus adapts shopauth engine metrics to client_golang.
//
// [Exporter] implements prometheus.Collector, so it can be registered on any
// registry. Counters are named shopauth_*_total and the identity lookup
// latency is exported as shopauth_me_latency_seconds.
package prometheus
