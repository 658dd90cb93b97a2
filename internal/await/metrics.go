package await

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/crosscheck/internal/locator"
)

// Outcome label values.
const (
	OutcomePass      = "pass"
	OutcomeTimeout   = "timeout"
	OutcomeAmbiguous = "ambiguous"
	OutcomeCancelled = "cancelled"
)

// Metrics counts assertion outcomes and durations.
type Metrics struct {
	seconds *prometheus.HistogramVec
	polls   prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		seconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crosscheck_await_seconds",
				Help:    "Time until an assertion passed or gave up.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
			},
			[]string{"outcome"},
		),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crosscheck_await_polls_total",
			Help: "Number of predicate evaluations across all assertions.",
		}),
	}
	reg.MustRegister(m.seconds, m.polls)
	return m
}

func (m *Metrics) observe(err error, elapsed time.Duration, polls int) {
	m.seconds.WithLabelValues(outcome(err)).Observe(elapsed.Seconds())
	m.polls.Add(float64(polls))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomePass
	case errors.Is(err, locator.ErrAmbiguous):
		return OutcomeAmbiguous
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	}
	return OutcomeTimeout
}
