package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frahmantamala/qr-document/internal/core/events"
)

const namespace = "qr_document"

// Metrics owns a private registry so tests and multiple servers in one process
// never collide on registration.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	documentsIssued  *prometheus.CounterVec
	issueFailures    *prometheus.CounterVec
	scanOutcomes     *prometheus.CounterVec
	framesDiscarded  prometheus.Counter
	sessionsOpened   *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_api_duration_seconds",
			Help:      "Latency of calls to the document API",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		documentsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_issued_total",
			Help:      "Documents issued, by type and department",
		}, []string{"type", "department"}),
		issueFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_issue_failures_total",
			Help:      "Failed issue-document submissions, by error type",
		}, []string{"error_type"}),
		scanOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_outcomes_total",
			Help:      "Verified scans, by outcome",
		}, []string{"outcome"}),
		framesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_frames_discarded_total",
			Help:      "Scanned frames dropped as malformed or throttled",
		}),
		sessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Workflow sessions opened, by kind",
		}, []string{"kind"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration,
		m.requestTotal,
		m.upstreamDuration,
		m.documentsIssued,
		m.issueFailures,
		m.scanOutcomes,
		m.framesDiscarded,
		m.sessionsOpened,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, labelStatus).Inc()
}

// ObserveUpstream records one document API call. status is 0 when no response arrived.
func (m *Metrics) ObserveUpstream(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(operation, strconv.Itoa(status)).Observe(duration.Seconds())
}

func (m *Metrics) FrameDiscarded() {
	if m == nil {
		return
	}
	m.framesDiscarded.Inc()
}

func (m *Metrics) SessionOpened(kind string) {
	if m == nil {
		return
	}
	m.sessionsOpened.WithLabelValues(kind).Inc()
}

// Subscribe counts workflow events published on bus.
func (m *Metrics) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeDocumentIssued, func(_ context.Context, e events.Event) error {
		if ev, ok := e.(*events.DocumentIssuedEvent); ok {
			m.documentsIssued.WithLabelValues(ev.DocumentType, ev.Department).Inc()
		}
		return nil
	})
	bus.Subscribe(events.EventTypeDocumentIssueFailed, func(_ context.Context, e events.Event) error {
		if ev, ok := e.(*events.DocumentIssueFailedEvent); ok {
			m.issueFailures.WithLabelValues(ev.ErrorType).Inc()
		}
		return nil
	})
	bus.Subscribe(events.EventTypeScanAccepted, func(_ context.Context, _ events.Event) error {
		m.scanOutcomes.WithLabelValues("accepted").Inc()
		return nil
	})
	bus.Subscribe(events.EventTypeScanRejected, func(_ context.Context, _ events.Event) error {
		m.scanOutcomes.WithLabelValues("rejected").Inc()
		return nil
	})
}
