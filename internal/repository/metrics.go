package repository

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counter for store operations by outcome
	storeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_store_operations_total",
			Help: "Total number of repository operations",
		},
		[]string{"collection", "operation", "status"}, // status: success/not_found/rejected/unavailable/error
	)

	// Histogram for store round-trip duration
	storeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_store_operation_duration_seconds",
			Help:    "Time spent in repository operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "operation"},
	)
)

// track records one finished operation. It is meant to be deferred with a
// pointer to the named error result.
func track(collection, operation string, start time.Time, err *error) {
	storeDuration.WithLabelValues(collection, operation).Observe(time.Since(start).Seconds())
	storeOperations.WithLabelValues(collection, operation, outcome(*err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrForbiddenField),
		errors.Is(err, ErrInvalidIdentifier), errors.Is(err, ErrDuplicate):
		return "rejected"
	case errors.Is(err, ErrConnection):
		return "unavailable"
	}
	return "error"
}
