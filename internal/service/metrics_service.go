package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP, cache and academy counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	inFlight        prometheus.Gauge
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	clockOuts         prometheus.Counter
	hoursAccrued      *prometheus.CounterVec
	sessionHours      prometheus.Histogram
	milestones        *prometheus.CounterVec
	emails            *prometheus.CounterVec
	importRows        *prometheus.CounterVec
	ledgerRecalcs     prometheus.Counter
	auditDropped      prometheus.Counter
	documentsRendered *prometheus.CounterVec
}

// NewMetricsService registers collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served",
		}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		clockOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_clock_outs_total",
			Help: "Completed clock-out sessions",
		}),
		hoursAccrued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_hours_accrued_total",
			Help: "Clock hours credited to students",
		}, []string{"kind"}),
		sessionHours: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_session_hours",
			Help:    "Length of clock-in sessions in hours",
			Buckets: []float64{1, 2, 4, 6, 8, 10, 12},
		}),
		milestones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "student_milestones_recorded_total",
			Help: "Hour milestones newly recorded",
		}, []string{"milestone"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sequence_emails_total",
			Help: "Sequence email send attempts by outcome",
		}, []string{"template", "status"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Spreadsheet rows processed by kind and outcome",
		}, []string{"kind", "outcome"}),
		ledgerRecalcs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_recalculations_total",
			Help: "Account balance recomputations",
		}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_entries_dropped_total",
			Help: "Audit entries discarded because the queue was full or stopped",
		}),
		documentsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "documents_rendered_total",
			Help: "Generated PDF documents by kind",
		}, []string{"kind"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration, m.requestTotal, m.inFlight,
		m.cacheLatency, m.cacheWrite, m.cacheHits, m.cacheMisses,
		m.clockOuts, m.hoursAccrued, m.sessionHours, m.milestones,
		m.emails, m.importRows, m.ledgerRecalcs, m.auditDropped, m.documentsRendered,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// TrackInFlight moves the in-flight request gauge by delta.
func (m *MetricsService) TrackInFlight(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
}

// ObserveHTTPRequest records the latency and count of a finished request. route is
// the matched gin pattern so ids never become label values.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, code).Inc()
}

// RecordCacheOperation records a cache lookup outcome.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveClockOut records a finished session and its hour split.
func (m *MetricsService) ObserveClockOut(actual, theory, practical float64) {
	if m == nil {
		return
	}
	m.clockOuts.Inc()
	m.sessionHours.Observe(actual)
	m.AddHours(theory, practical)
}

// AddHours credits theory and practical hours.
func (m *MetricsService) AddHours(theory, practical float64) {
	if m == nil {
		return
	}
	m.hoursAccrued.WithLabelValues("theory").Add(theory)
	m.hoursAccrued.WithLabelValues("practical").Add(practical)
}

// MilestoneRecorded counts a newly recorded milestone.
func (m *MetricsService) MilestoneRecorded(milestone string) {
	if m == nil {
		return
	}
	m.milestones.WithLabelValues(milestone).Inc()
}

// EmailAttempt counts a sequence email send.
func (m *MetricsService) EmailAttempt(template string, sent bool) {
	if m == nil {
		return
	}
	status := "sent"
	if !sent {
		status = "failed"
	}
	m.emails.WithLabelValues(template, status).Inc()
}

// ImportRows counts processed spreadsheet rows.
func (m *MetricsService) ImportRows(kind string, imported, failed int) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(kind, "imported").Add(float64(imported))
	m.importRows.WithLabelValues(kind, "failed").Add(float64(failed))
}

// LedgerRecalculated counts a balance recomputation.
func (m *MetricsService) LedgerRecalculated() {
	if m == nil {
		return
	}
	m.ledgerRecalcs.Inc()
}

// AuditDropped counts discarded audit entries.
func (m *MetricsService) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

// DocumentRendered counts a generated PDF.
func (m *MetricsService) DocumentRendered(kind string) {
	if m == nil {
		return
	}
	m.documentsRendered.WithLabelValues(kind).Inc()
}
