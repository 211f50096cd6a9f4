package trchttp

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const outcomeAborted = "aborted"

// Metrics describe requests served by the middleware.
type Metrics struct {
	users    *prometheus.CounterVec
	requests *prometheus.HistogramVec
}

// NewMetrics registers the metrics with the given registerer, and returns
// them. If the registerer is nil, the metrics aren't registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		users: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trc",
				Subsystem: "http",
				Name:      "user_resolutions_total",
				Help:      "Requests by how the trace user was determined.",
			},
			[]string{"outcome"},
		),
		requests: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trc",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"code"},
		),
	}
}

// Outcomes returns the counter of user resolutions for the given outcome,
// which is either one of the [trcuser.Source] values or "aborted".
func (m *Metrics) Outcomes(outcome string) prometheus.Counter {
	return m.users.WithLabelValues(outcome)
}

func (m *Metrics) observe(outcome string, code int, took time.Duration) {
	m.users.WithLabelValues(outcome).Inc()
	m.requests.WithLabelValues(strconv.Itoa(code)).Observe(took.Seconds())
}
