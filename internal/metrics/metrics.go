package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "waterz"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Gateway HTTP requests by route and status class.",
		},
		[]string{"route", "status"},
	)

	backendCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "backend_calls_total",
			Help:      "Calls to the yacht backend by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	checkoutOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "checkout_outcomes_total",
			Help:      "Checkout session transitions by resulting state.",
		},
		[]string{"state"},
	)

	slotLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "slot_lookups_total",
			Help:      "Availability lookups by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, backendCalls, checkoutOutcomes, slotLookups)
	})
}

func IncHTTP(route, status string) {
	httpRequests.WithLabelValues(route, status).Inc()
}

func IncBackend(endpoint, outcome string) {
	backendCalls.WithLabelValues(endpoint, outcome).Inc()
}

func IncCheckout(state string) {
	checkoutOutcomes.WithLabelValues(state).Inc()
}

// IncSlotLookup counts lookups as "applied", "superseded", "empty" or "error".
func IncSlotLookup(result string) {
	slotLookups.WithLabelValues(result).Inc()
}
