package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	results  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "misstea",
			Subsystem: "pipeline",
			Name:      "strategy_attempts_total",
			Help:      "Strategy attempts by strategy and result (hit, empty, error, panic).",
		}, []string{"strategy", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "misstea",
			Subsystem: "pipeline",
			Name:      "strategy_duration_seconds",
			Help:      "Time spent in each strategy attempt.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"strategy"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "misstea",
			Subsystem: "pipeline",
			Name:      "results_total",
			Help:      "Extraction results by outcome and winning strategy.",
		}, []string{"outcome", "strategy"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.duration, m.results)
	}
	return m
}

func (m *Metrics) observeAttempt(strategy, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(strategy, result).Inc()
	m.duration.WithLabelValues(strategy).Observe(d.Seconds())
}

func (m *Metrics) observeResult(outcome Outcome, strategy string) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.results.WithLabelValues(string(outcome), strategy).Inc()
}
