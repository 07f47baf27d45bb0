package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omni_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omni_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Database metrics
	PlatformPoolsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omni_platform_pools_open",
			Help: "Number of open per-platform database pools",
		},
	)

	MigrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omni_migrations_total",
			Help: "Total number of schema migrations by artifact and result",
		},
		[]string{"artifact", "result"},
	)

	// Backup metrics
	BackupJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omni_backup_jobs_total",
			Help: "Total number of backup jobs by component and status",
		},
		[]string{"component", "status"},
	)

	BackupsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omni_backups_active",
			Help: "Number of backups currently in progress",
		},
	)

	BackupSizeBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omni_backup_size_bytes",
			Help:    "Size of completed backup sets in bytes",
			Buckets: prometheus.ExponentialBuckets(1<<20, 4, 10),
		},
	)

	// Autoscaler metrics
	ScaleDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omni_scale_decisions_total",
			Help: "Total number of autoscaler decisions by direction",
		},
		[]string{"direction"},
	)

	ScaleActionErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omni_scale_action_errors_total",
			Help: "Total number of failed scale action executions",
		},
	)

	// Bootstrap metrics
	BootstrapHostsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omni_bootstrap_hosts_total",
			Help: "Number of bootstrap hosts by status",
		},
		[]string{"status"},
	)
)

// init registers all metrics with the default registry
func init() {
	prometheus.MustRegister(
		APIRequestsTotal,
		APIRequestDuration,
		PlatformPoolsOpen,
		MigrationsTotal,
		BackupJobsTotal,
		BackupsActive,
		BackupSizeBytes,
		ScaleDecisionsTotal,
		ScaleActionErrors,
		BootstrapHostsTotal,
	)
}

// Handler returns the HTTP handler exposing metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
