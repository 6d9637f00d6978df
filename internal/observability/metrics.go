package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "driver_hiring"

var (
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "bookings_created_total", Help: "Total bookings inserted"})
	AuthFailures    = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "auth_failures_total", Help: "Requests rejected by token verification"})

	PaymentOrders = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "payment_orders_total", Help: "Payment orders requested from the gateway"},
		[]string{"provider", "result"},
	)
	MirrorWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "mirror_writes_total", Help: "Realtime mirror writes per sink"},
		[]string{"sink", "result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Result turns an error into the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
