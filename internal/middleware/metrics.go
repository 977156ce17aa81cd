package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis command failures by command name. The cache
	// client increments it through a hook so cache degradation is visible
	// even though the cache itself fails open.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronicle_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// ActiveWebSockets is the gauge of currently open feed websocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chronicle_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// TagCountAdjustFailures counts post_count adjustments that failed after
	// the owning post mutation already committed.
	TagCountAdjustFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronicle_tag_count_adjust_failures_total",
		Help: "Total number of failed tag post_count adjustments",
	})
)

// InitMetrics creates the Prometheus middleware for the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware returns the request-duration/count middleware backed by
// the fiberprometheus instance created in InitMetrics.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
