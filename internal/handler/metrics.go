package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics holds all Prometheus collectors for the voting backend.
var Metrics = struct {
	VotesTotal        *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	DBPoolActive      prometheus.GaugeFunc
	DBPoolIdle        prometheus.GaugeFunc
	RequestsInFlight  prometheus.Gauge
	BreakerState      prometheus.Gauge
	PersistQueueDepth prometheus.GaugeFunc
	LedgerApplied     prometheus.Counter
	LedgerDeadLetter  prometheus.Counter
}{}

// InitMetrics registers all Prometheus metrics. Call once at startup.
// queueDepth may be nil when Redis is disabled.
func InitMetrics(pool *pgxpool.Pool, queueDepth func() float64) {
	Metrics.VotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aimoviez_votes_total",
			Help: "Total vote submissions, by result code.",
		},
		[]string{"code"},
	)

	Metrics.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aimoviez_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	Metrics.RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aimoviez_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	Metrics.BreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aimoviez_vote_breaker_state",
			Help: "Sync-path circuit breaker state (0 closed, 1 open, 2 half-open).",
		},
	)

	Metrics.LedgerApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aimoviez_ledger_applied_total",
			Help: "Queued vote events applied to the ledger.",
		},
	)

	Metrics.LedgerDeadLetter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aimoviez_ledger_dead_letter_total",
			Help: "Queued vote events moved to the dead letter list.",
		},
	)

	if queueDepth != nil {
		Metrics.PersistQueueDepth = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "aimoviez_persist_queue_depth",
				Help: "Vote events waiting in the Redis persist queue.",
			},
			queueDepth,
		)
		prometheus.MustRegister(Metrics.PersistQueueDepth)
	}

	// DB pool gauges — read live stats from pgxpool
	if pool != nil {
		Metrics.DBPoolActive = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "aimoviez_db_connection_pool_active",
				Help: "Number of active database connections.",
			},
			func() float64 {
				return float64(pool.Stat().AcquiredConns())
			},
		)

		Metrics.DBPoolIdle = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "aimoviez_db_connection_pool_idle",
				Help: "Number of idle database connections.",
			},
			func() float64 {
				return float64(pool.Stat().IdleConns())
			},
		)

		prometheus.MustRegister(Metrics.DBPoolActive)
		prometheus.MustRegister(Metrics.DBPoolIdle)
	}

	prometheus.MustRegister(
		Metrics.VotesTotal,
		Metrics.RequestDuration,
		Metrics.RequestsInFlight,
		Metrics.BreakerState,
		Metrics.LedgerApplied,
		Metrics.LedgerDeadLetter,
	)
}

// MetricsMiddleware records request duration and in-flight count for Prometheus.
func MetricsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		// Don't instrument the /metrics endpoint itself
		if c.Path() == "/metrics" {
			return c.Next()
		}

		// Copy path and method into owned strings BEFORE c.Next() — Fiber
		// returns slices backed by the fasthttp buffer which can be reused
		// or overwritten by handlers (especially fasthttpadaptor).
		path := string([]byte(c.Path()))
		method := string([]byte(c.Method()))
		endpoint := sanitizeEndpoint(path)

		Metrics.RequestsInFlight.Inc()
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())

		Metrics.RequestDuration.WithLabelValues(endpoint, method, status).Observe(duration)
		Metrics.RequestsInFlight.Dec()

		return err
	}
}

// sanitizeEndpoint normalizes paths to avoid cardinality explosion.
func sanitizeEndpoint(path string) string {
	switch {
	case len(path) > 17 && path[:17] == "/api/admin/slots/":
		return "/api/admin/slots/:slotId"
	case len(path) > 17 && path[:17] == "/api/admin/clips/":
		return "/api/admin/clips/bulk"
	default:
		return path
	}
}

// MetricsHandler serves the Prometheus /metrics endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	httpHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c fiber.Ctx) error {
		httpHandler(c.RequestCtx())
		return nil
	}
}
