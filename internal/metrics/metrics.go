// Package metrics registers the Prometheus collectors of the dashboard.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReportsAssembledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_reports_assembled_total",
		Help: "Reports assembled successfully, by location",
	}, []string{"location"})

	ReportErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_report_errors_total",
		Help: "Report requests that failed, by location and error kind",
	}, []string{"location", "kind"})

	SeriesLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "occupancy_series_load_duration_seconds",
		Help:    "Time spent loading a location series",
		Buckets: prometheus.DefBuckets,
	}, []string{"location", "outcome"})

	SeriesRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "occupancy_series_records",
		Help: "Records held in memory per location series",
	}, []string{"location"})

	ReportCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "occupancy_report_cache_hits_total",
		Help: "Report cache hits",
	})

	ReportCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "occupancy_report_cache_misses_total",
		Help: "Report cache misses",
	})

	ReportEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_report_events_total",
		Help: "report.generated events by outcome (published, failed, consumed, requeued, rejected)",
	}, []string{"outcome"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "occupancy_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"route"})

	HTTPFlaggedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_http_flagged_total",
		Help: "Requests flagged by the security wrapper, by reason (rate_limited, suspicious)",
	}, []string{"reason"})
)

// RecordSeriesLoad records the outcome of loading one location.
func RecordSeriesLoad(location string, d time.Duration, records int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SeriesLoadDuration.WithLabelValues(location, outcome).Observe(d.Seconds())
	if err == nil {
		SeriesRecords.WithLabelValues(location).Set(float64(records))
	}
}

// RecordCache counts a cache lookup.
func RecordCache(hit bool) {
	if hit {
		ReportCacheHitsTotal.Inc()
		return
	}
	ReportCacheMissesTotal.Inc()
}

// RecordHTTP counts a served request.
func RecordHTTP(route string, code int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
