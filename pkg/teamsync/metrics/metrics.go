// Package metrics provides Prometheus collectors for the teamsync service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "teamsync"

// Metrics holds every collector exported by the service
type Metrics struct {
	gatherer prometheus.Gatherer

	positionReports *prometheus.CounterVec
	trackedClients  prometheus.Gauge

	assetsStored    *prometheus.CounterVec
	uploadsRejected *prometheus.CounterVec
	assetsCleared   *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on registry
func New(registry *prometheus.Registry) *Metrics {
	auto := promauto.With(registry)
	return &Metrics{
		gatherer: registry,
		positionReports: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "reports_total",
			Help:      "Position reports received, by result",
		}, []string{"result"}),
		trackedClients: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "tracked_clients",
			Help:      "Number of clients with a stored position",
		}),
		assetsStored: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "stored_total",
			Help:      "Assets stored, by namespace",
		}, []string{"namespace"}),
		uploadsRejected: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "uploads_rejected_total",
			Help:      "Upload batches rejected, by reason",
		}, []string{"reason"}),
		assetsCleared: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "cleared_total",
			Help:      "Assets removed by namespace clears",
		}, []string{"namespace"}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by route, method and status",
		}, []string{"route", "method", "status"}),
		httpRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// RecordPositionReport counts a report and refreshes the tracked client gauge
func (m *Metrics) RecordPositionReport(accepted bool, trackedClients int) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.positionReports.WithLabelValues(result).Inc()
	m.trackedClients.Set(float64(trackedClients))
}

// RecordAssetStored counts one stored asset
func (m *Metrics) RecordAssetStored(ns string) {
	m.assetsStored.WithLabelValues(ns).Inc()
}

// RecordUploadRejected counts a failed upload batch
func (m *Metrics) RecordUploadRejected(reason string) {
	m.uploadsRejected.WithLabelValues(reason).Inc()
}

// RecordCleared adds the number of assets removed from a namespace
func (m *Metrics) RecordCleared(ns string, removed int) {
	m.assetsCleared.WithLabelValues(ns).Add(float64(removed))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
