package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for the bot
type Metrics struct {
	UpdateCounter     *prometheus.CounterVec
	HandlerDuration   *prometheus.HistogramVec
	ThrottledUpdates  prometheus.Counter
	SessionsCompleted prometheus.Counter
	BanSweepRuns      prometheus.Counter
}

// NewMetrics creates a new metrics instance
func NewMetrics(serviceName string) *Metrics {
	return &Metrics{
		UpdateCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quizbot",
				Subsystem: serviceName,
				Name:      "updates_total",
				Help:      "Total number of processed transport updates",
			},
			[]string{"handler", "status"},
		),
		HandlerDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quizbot",
				Subsystem: serviceName,
				Name:      "handler_duration_seconds",
				Help:      "Update handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"handler"},
		),
		ThrottledUpdates: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quizbot",
				Subsystem: serviceName,
				Name:      "throttled_updates_total",
				Help:      "Updates rejected by the per-user rate guard",
			},
		),
		SessionsCompleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quizbot",
				Subsystem: serviceName,
				Name:      "sessions_completed_total",
				Help:      "Quiz sessions that reached the gratitude message",
			},
		),
		BanSweepRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quizbot",
				Subsystem: serviceName,
				Name:      "ban_sweep_runs_total",
				Help:      "Completed ban expiry sweep iterations",
			},
		),
	}
}

// ObserveHandler records one handled update for the given handler name.
func (m *Metrics) ObserveHandler(handler, status string, started time.Time) {
	m.UpdateCounter.WithLabelValues(handler, status).Inc()
	m.HandlerDuration.WithLabelValues(handler).Observe(time.Since(started).Seconds())
}

// Serve exposes the /metrics endpoint; it blocks like http.ListenAndServe.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
