package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "typesense_client"

type promMetrics struct {
	registry        *prometheus.Registry
	selections      *prometheus.CounterVec
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	nodeHealthy     *prometheus.GaugeVec
}

func newPromMetrics() *promMetrics {
	pm := &promMetrics{
		registry: prometheus.NewRegistry(),
		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_selections_total",
				Help:      "Times a node was picked for an attempt.",
			},
			[]string{"node"},
		),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Attempts sent to a node, by response status class.",
			},
			[]string{"node", "status"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_duration_seconds",
				Help:      "Latency of single attempts.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 13),
			},
			[]string{"node"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Attempts that failed transiently and were retried elsewhere.",
			},
			[]string{"node"},
		),
		nodeHealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "node_healthy",
				Help:      "1 when the node is marked healthy, 0 otherwise.",
			},
			[]string{"node"},
		),
	}

	pm.registry.MustRegister(pm.selections, pm.attempts, pm.attemptDuration, pm.retries, pm.nodeHealthy)

	return pm
}

// Registry exposes the collector's Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.prom.registry
}

func statusClass(code int) string {
	if code == 0 {
		return "transport_error"
	}
	return strconv.Itoa(code/100) + "xx"
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
