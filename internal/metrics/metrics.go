package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DeskMetrics holds all Prometheus metrics for the log desk
type DeskMetrics struct {
	// Query operations
	QueriesTotal    prometheus.Counter
	QueryDuration   prometheus.Histogram
	QueryMatches    prometheus.Histogram
	FilterChanges   *prometheus.CounterVec
	PageClampsTotal prometheus.Counter

	// Access control
	PermissionChecks *prometheus.CounterVec
	RoleSelections   *prometheus.CounterVec
	LogoutsTotal     prometheus.Counter

	// Selection and status
	SelectionMisses    prometheus.Counter
	StatusUpdatesTotal *prometheus.CounterVec
	ActiveSubscribers  prometheus.Gauge

	// Dataset
	CollectionSize prometheus.Gauge

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	deskMetricsInstance *DeskMetrics
	deskMetricsOnce     sync.Once
)

// GetDeskMetrics returns the singleton instance of desk metrics
func GetDeskMetrics() *DeskMetrics {
	deskMetricsOnce.Do(func() {
		deskMetricsInstance = newDeskMetrics()
	})
	return deskMetricsInstance
}

// newDeskMetrics creates and registers all metrics (internal)
func newDeskMetrics() *DeskMetrics {
	return &DeskMetrics{
		QueriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "logdesk_queries_total",
			Help: "Total number of log table queries",
		}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "logdesk_query_duration_seconds",
			Help:    "Time taken to compute a visible window",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15), // 10us to ~160ms
		}),
		QueryMatches: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "logdesk_query_matches",
			Help:    "Number of records matching a query",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		FilterChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "logdesk_filter_changes_total",
			Help: "Filter changes by kind (text, date)",
		}, []string{"kind"}),
		PageClampsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "logdesk_page_clamps_total",
			Help: "Page requests outside the valid range",
		}),

		PermissionChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "logdesk_permission_checks_total",
			Help: "Permission checks by capability and outcome",
		}, []string{"capability", "outcome"}),
		RoleSelections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "logdesk_role_selections_total",
			Help: "Role selections by role",
		}, []string{"role"}),
		LogoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "logdesk_logouts_total",
			Help: "Total number of logouts",
		}),

		SelectionMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "logdesk_selection_misses_total",
			Help: "Detail requests for unknown log ids",
		}),
		StatusUpdatesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "logdesk_status_updates_total",
			Help: "Resolution status updates by new status",
		}, []string{"status"}),
		ActiveSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "logdesk_active_subscribers",
			Help: "Current number of status change subscribers",
		}),

		CollectionSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "logdesk_collection_size",
			Help: "Number of records in the loaded dataset",
		}),

		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "logdesk_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "logdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
