package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendmart_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vendmart_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	purchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendmart_purchases_total",
		Help: "Count of purchase attempts by result",
	}, []string{"result"})

	coinsDispensedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendmart_coins_dispensed_total",
		Help: "Count of coins returned as change, by denomination",
	}, []string{"denomination"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// CountPurchase records the outcome of a purchase attempt
func CountPurchase(result string) {
	purchasesTotal.WithLabelValues(result).Inc()
}

// CountCoinsDispensed records the coins handed back as change
func CountCoinsDispensed(denomination string) {
	coinsDispensedTotal.WithLabelValues(denomination).Inc()
}
