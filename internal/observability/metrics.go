package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Simulation metrics
	SimulationsTotal   *prometheus.CounterVec // kind, status
	SimulationDuration *prometheus.HistogramVec

	// Fork metrics
	ForksStarted      prometheus.Counter
	ForkStartFailures *prometheus.CounterVec // reason
	ForkStartDuration prometheus.Histogram

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec // method

	// Event metrics
	EventsDecoded prometheus.Counter
	LogsDropped   prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered on reg; nil reg
// uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "perpsim"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SimulationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Simulation invocations by kind and terminal status.",
		}, []string{"kind", "status"}),
		SimulationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_duration_seconds",
			Help:      "Wall time of one simulation invocation.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"kind"}),
		ForksStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forks_started_total",
			Help:      "Fork processes started.",
		}),
		ForkStartFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fork_start_failures_total",
			Help:      "Fork acquisitions that failed, by reason.",
		}, []string{"reason"}),
		ForkStartDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fork_start_duration_seconds",
			Help:      "Time from fork spawn to readiness.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_call_latency_seconds",
			Help:      "Ledger JSON-RPC call latency by method.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"method"}),
		EventsDecoded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_decoded_total",
			Help:      "Domain events decoded from receipt logs.",
		}),
		LogsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_dropped_total",
			Help:      "Receipt logs skipped as unrecognized noise.",
		}),
	}
}

// ObserveRPC is a chain.WithLatencyObserver adapter.
func (m *Metrics) ObserveRPC(method string, elapsed time.Duration) {
	m.RPCCallLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}
