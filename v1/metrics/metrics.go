// Package metrics exposes Prometheus collectors for the locking core.
// Per-manager acquisition counters are opt-in via latch.WithMetrics; the
// collectors here cover process-wide heartbeat activity.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// HeartbeatGauge reports the number of active heartbeat schedulers,
	// which equals the number of locks this process is keeping alive.
	HeartbeatGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "latch_heartbeats",
		Help: "Current number of active lock heartbeats",
	})
	// HeartbeatCompromisedCounter tracks heartbeats that ended in a
	// compromised lock.
	HeartbeatCompromisedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "latch_heartbeat_compromised_total",
		Help: "Total number of heartbeats terminated by a compromised lock",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers the locking core metrics on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(HeartbeatGauge, HeartbeatCompromisedCounter)
}
