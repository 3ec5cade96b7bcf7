package srs

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/conorfennell/lingosrs/internal/domain"
)

// Metrics holds the review counters exported on /metrics.
type Metrics struct {
	reviews      *prometheus.CounterVec
	conflicts    prometheus.Counter
	cardsCreated *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reviews: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lingosrs",
				Name:      "reviews_total",
				Help:      "Accepted reviews by rating and state transition.",
			},
			[]string{"rating", "from", "to"},
		),
		conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lingosrs",
				Name:      "review_conflicts_total",
				Help:      "Reviews recomputed because the card changed concurrently.",
			},
		),
		cardsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lingosrs",
				Name:      "cards_created_total",
				Help:      "Cards created, by origin.",
			},
			[]string{"origin"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.reviews, m.conflicts, m.cardsCreated)
	}
	return m
}

func (m *Metrics) observeReview(r domain.Rating, from, to domain.State) {
	m.reviews.WithLabelValues(r.String(), from.String(), to.String()).Inc()
}
