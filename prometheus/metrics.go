package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Catalog operation counter
	CatalogOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_operations_total",
			Help: "Total number of catalog operations",
		},
		[]string{"operation"}, // operation can be "publish", "update", "unpublish", "sync", etc.
	)

	// Sync outcome counter
	SyncOutcomeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_outcomes_total",
			Help: "Total number of reconciliation passes by outcome",
		},
		[]string{"outcome"}, // outcome can be "in_sync", "removed_orphans", "skipped"
	)

	// Orphans removed by reconciliation
	OrphansRemovedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_orphans_removed_total",
			Help: "Total number of orphaned catalog entries removed by sync",
		},
	)

	// Cleanup failure counter
	CleanupFailureCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cleanup_failures_total",
			Help: "Total number of per-document failures during cascade cleanup",
		},
		[]string{"collection"},
	)

	// Tenant operation counter
	TenantOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_tenant_operations_total",
			Help: "Total number of tenant operations",
		},
		[]string{"operation"},
	)

	// User operation counter
	UserOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_user_operations_total",
			Help: "Total number of user profile operations",
		},
		[]string{"operation"},
	)

	// Usage session counter
	UsageSessionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_usage_sessions_total",
			Help: "Total number of usage session events",
		},
		[]string{"event"}, // event can be "started", "ended"
	)

	// Roster provider request counter
	RosterRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_roster_requests_total",
			Help: "Total number of roster provider requests by result",
		},
		[]string{"result"}, // result can be "ok", "error"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Authentication error counter
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "missing_token", "invalid_auth_format", "invalid_token"
	)

	// Error counters
	ErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_errors_total",
			Help: "Total number of request errors",
		},
		[]string{"type"}, // type can be "validation", "not_found", "roster_error", "db_error" etc.
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "upsert", "delete"
	)
)

// Gauge metrics
var (
	// Published catalog entries
	PublishedAgentsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_published_agents",
			Help: "Number of currently published catalog entries",
		},
	)

	// Tenants
	TenantsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_tenants",
			Help: "Number of tenants",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_info",
			Help: "Information about the catalog service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(CatalogOperationCounter)
	prometheus.MustRegister(SyncOutcomeCounter)
	prometheus.MustRegister(OrphansRemovedCounter)
	prometheus.MustRegister(CleanupFailureCounter)
	prometheus.MustRegister(TenantOperationCounter)
	prometheus.MustRegister(UserOperationCounter)
	prometheus.MustRegister(UsageSessionCounter)
	prometheus.MustRegister(RosterRequestCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(ErrorCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(PublishedAgentsGauge)
	prometheus.MustRegister(TenantsGauge)
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			// Record metrics
			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordCatalogOperation records a catalog operation
func RecordCatalogOperation(operation string) {
	CatalogOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordSyncOutcome records the outcome of a reconciliation pass
func RecordSyncOutcome(outcome string) {
	SyncOutcomeCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordCleanupFailures records per-document cascade cleanup failures
func RecordCleanupFailures(collection string, count int) {
	if count > 0 {
		CleanupFailureCounter.With(prometheus.Labels{"collection": collection}).Add(float64(count))
	}
}

// RecordTenantOperation records a tenant operation
func RecordTenantOperation(operation string) {
	TenantOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordUserOperation records a user profile operation
func RecordUserOperation(operation string) {
	UserOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordUsageSession records a usage session event
func RecordUsageSession(event string) {
	UsageSessionCounter.With(prometheus.Labels{"event": event}).Inc()
}

// RecordRosterRequest records a roster provider request result
func RecordRosterRequest(result string) {
	RosterRequestCounter.With(prometheus.Labels{"result": result}).Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordError records a request error by type
func RecordError(errorType string) {
	ErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// UpdatePublishedAgents updates the published agents gauge
func UpdatePublishedAgents(count int64) {
	PublishedAgentsGauge.Set(float64(count))
}

// UpdateTenants updates the tenants gauge
func UpdateTenants(count int64) {
	TenantsGauge.Set(float64(count))
}
