// Package metrics defines the Prometheus collectors shared by the channel
// service and the emulation controller.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the collectors this module exposes, so callers mount one
// struct instead of wiring metrics ad hoc at each call site.
type Registry struct {
	ComputeLatencySeconds *prometheus.HistogramVec
	ComputeErrorsTotal    *prometheus.CounterVec
	LinkSNRDB             *prometheus.GaugeVec
	LinkSINRDB            *prometheus.GaugeVec
	NetemApplyTotal       *prometheus.CounterVec
	NetemSkippedTotal     *prometheus.CounterVec
}

// NewRegistry constructs and registers a [Registry] on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		ComputeLatencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sine",
			Subsystem: "channel",
			Name:      "compute_latency_seconds",
			Help:      "Latency of channel-compute operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "engine"}),
		ComputeErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sine",
			Subsystem: "channel",
			Name:      "compute_errors_total",
			Help:      "Count of channel-compute failures by kind.",
		}, []string{"kind"}),
		LinkSNRDB: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sine",
			Subsystem: "link",
			Name:      "snr_db",
			Help:      "Most recently computed SNR for a directional link.",
		}, []string{"tx", "rx"}),
		LinkSINRDB: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sine",
			Subsystem: "link",
			Name:      "sinr_db",
			Help:      "Most recently computed SINR for a directional link.",
		}, []string{"tx", "rx"}),
		NetemApplyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sine",
			Subsystem: "netem",
			Name:      "apply_total",
			Help:      "Count of netem programmes applied, by interface.",
		}, []string{"interface"}),
		NetemSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sine",
			Subsystem: "netem",
			Name:      "skipped_total",
			Help:      "Count of netem updates skipped by hysteresis/rate-limit, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		r.ComputeLatencySeconds,
		r.ComputeErrorsTotal,
		r.LinkSNRDB,
		r.LinkSINRDB,
		r.NetemApplyTotal,
		r.NetemSkippedTotal,
	)
	return r
}
