// Package metrics provides Prometheus metrics for hacmanager.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	loginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hacmanager_login_attempts_total",
			Help: "Total login attempts against HAC portals",
		},
		[]string{"portal", "result"},
	)

	catalogFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hacmanager_catalog_files",
			Help: "Number of files in the cached catalog per portal",
		},
		[]string{"portal"},
	)

	catalogRefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hacmanager_catalog_refresh_duration_seconds",
			Help:    "Time to fetch the remote file listing",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"portal"},
	)

	archiveRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hacmanager_archive_request_duration_seconds",
			Help:    "Time for the server to build a zip archive",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"portal"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hacmanager_downloads_total",
			Help: "Total archive downloads",
		},
		[]string{"portal", "status"},
	)

	downloadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hacmanager_download_bytes_total",
			Help: "Total bytes streamed from HAC portals",
		},
		[]string{"portal"},
	)

	relocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hacmanager_relocations_total",
			Help: "Total log files relocated into query output folders",
		},
		[]string{"portal"},
	)

	sinkUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hacmanager_sink_uploads_total",
			Help: "Total relocated files mirrored to the storage sink",
		},
		[]string{"backend", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr. It blocks, so callers run it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}

// RecordLoginAttempt records a login attempt.
func RecordLoginAttempt(portal string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	loginAttemptsTotal.WithLabelValues(portal, result).Inc()
}

// SetCatalogFiles sets the current catalog size for a portal.
func SetCatalogFiles(portal string, count int) {
	catalogFiles.WithLabelValues(portal).Set(float64(count))
}

// RecordCatalogRefresh records a catalog refresh duration.
func RecordCatalogRefresh(portal string, duration time.Duration) {
	catalogRefreshDuration.WithLabelValues(portal).Observe(duration.Seconds())
}

// RecordArchiveRequest records a server-side zip build duration.
func RecordArchiveRequest(portal string, duration time.Duration) {
	archiveRequestDuration.WithLabelValues(portal).Observe(duration.Seconds())
}

// RecordDownload records a completed, failed or skipped download.
func RecordDownload(portal, status string) {
	downloadsTotal.WithLabelValues(portal, status).Inc()
}

// AddDownloadBytes adds streamed bytes for a portal.
func AddDownloadBytes(portal string, n int64) {
	downloadBytesTotal.WithLabelValues(portal).Add(float64(n))
}

// RecordRelocation records a relocated log file.
func RecordRelocation(portal string) {
	relocationsTotal.WithLabelValues(portal).Inc()
}

// RecordSinkUpload records a storage sink upload.
func RecordSinkUpload(backend string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	sinkUploadsTotal.WithLabelValues(backend, status).Inc()
}
