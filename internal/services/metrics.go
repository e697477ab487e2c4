package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// txTransitions counts ledger writes by resulting status.
	txTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_transactions_total",
			Help: "Transactions created, completed or cancelled.",
		},
		[]string{"status"},
	)

	// reviewsSubmitted counts persisted reviews.
	reviewsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_reviews_total",
			Help: "Reviews persisted.",
		},
	)

	// cascadeFailures counts listing deletions that failed during a user
	// cascade delete.
	cascadeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_cascade_failures_total",
			Help: "Listing deletions that failed while deleting a user.",
		},
	)
)

func init() {
	prometheus.MustRegister(txTransitions, reviewsSubmitted, cascadeFailures)
}
