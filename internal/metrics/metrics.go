package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const prefix = "onsalenow"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// outcome: sent | failed | deduped | no_subscribers | skipped
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_notifications_total",
			Help: "Product notification fan-out outcomes per topic kind",
		},
		[]string{"kind", "outcome"},
	)

	TagSync = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_tag_sync_total",
			Help: "Push provider tag updates",
		},
		[]string{"op", "outcome"},
	)

	SubscriptionOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_subscription_operations_total",
			Help: "Subscription registry operations",
		},
		[]string{"op", "kind"},
	)

	ReconcileUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_reconcile_product_updates_total",
			Help: "Product flag writes issued by seller-block reconciliation",
		},
		[]string{"outcome"},
	)
)

// Middleware records request count and latency per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		path := c.Route().Path
		labels := []string{c.Method(), path, strconv.Itoa(status)}
		HTTPRequestsTotal.WithLabelValues(labels...).Inc()
		HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
