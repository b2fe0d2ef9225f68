package capability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricCallsTotal      = "capability_calls_total"
	MetricCallErrorsTotal = "capability_call_errors_total"
	MetricCallDuration    = "capability_call_duration_seconds"
	MetricFallbacksTotal  = "capability_fallbacks_total"
)

// Metrics contains Prometheus metrics for capability calls.
// All operations are thread-safe.
type Metrics struct {
	callsTotal   prometheus.Counter
	callErrors   prometheus.Counter
	callDuration prometheus.Histogram
	fallbacks    *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		callsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCallsTotal,
			Help: "Total number of capability calls attempted",
		}),
		callErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCallErrorsTotal,
			Help: "Total number of capability calls that failed",
		}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricCallDuration,
			Help:    "Histogram of capability call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFallbacksTotal,
			Help: "Total number of deterministic fallbacks taken per component",
		}, []string{"component"}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.callsTotal,
		m.callErrors,
		m.callDuration,
		m.fallbacks,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveCall records one capability call attempt with its duration and outcome.
func (m *Metrics) ObserveCall(seconds float64, err error) {
	m.callsTotal.Inc()
	m.callDuration.Observe(seconds)
	if err != nil {
		m.callErrors.Inc()
	}
}

// IncFallback increments the fallback counter for a component.
func (m *Metrics) IncFallback(component string) {
	m.fallbacks.WithLabelValues(component).Inc()
}
