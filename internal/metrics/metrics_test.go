package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/qr-document/internal/core/events"
	"github.com/frahmantamala/qr-document/internal/metrics"
	"github.com/frahmantamala/qr-document/pkg/logger"
)

func scrape(m *metrics.Metrics) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	Expect(rec.Code).To(Equal(http.StatusOK))
	body, err := io.ReadAll(rec.Body)
	Expect(err).NotTo(HaveOccurred())
	return string(body)
}

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.New()
	})

	It("should count HTTP requests by route pattern", func() {
		m.ObserveHTTPRequest(http.MethodGet, "/api/v1/sessions/{sessionId}/", 200, 15*time.Millisecond)
		m.ObserveHTTPRequest(http.MethodGet, "/api/v1/sessions/{sessionId}/", 200, 5*time.Millisecond)

		Expect(scrape(m)).To(ContainSubstring(`qr_document_http_requests_total{method="GET",route="/api/v1/sessions/{sessionId}/",status="200"} 2`))
	})

	It("should expose counters and upstream latency", func() {
		m.FrameDiscarded()
		m.FrameDiscarded()
		m.SessionOpened("scan")
		m.ObserveUpstream("verify_scan", 0, time.Second)

		out := scrape(m)
		Expect(out).To(ContainSubstring("qr_document_scan_frames_discarded_total 2"))
		Expect(out).To(ContainSubstring(`qr_document_sessions_opened_total{kind="scan"} 1`))
		Expect(out).To(ContainSubstring(`qr_document_document_api_duration_seconds_count{operation="verify_scan",status="0"} 1`))
	})

	It("should count workflow events from the bus", func() {
		bus := events.NewEventBus(logger.Discard())
		m.Subscribe(bus)
		ctx := context.Background()

		Expect(bus.PublishSync(ctx, events.NewDocumentIssuedEvent("s", "d", "PAYROLL", "FINANCE", 1))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewDocumentIssueFailedEvent("s", "FINANCE", "TRANSPORT_ERROR", "timeout"))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewScanOutcomeEvent("s", "d", "HR", true, "ok"))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewScanOutcomeEvent("s", "d", "HR", false, "no"))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewScanOutcomeEvent("s", "d", "HR", false, "no"))).To(Succeed())

		out := scrape(m)
		Expect(out).To(ContainSubstring(`qr_document_documents_issued_total{department="FINANCE",type="PAYROLL"} 1`))
		Expect(out).To(ContainSubstring(`qr_document_document_issue_failures_total{error_type="TRANSPORT_ERROR"} 1`))
		Expect(out).To(ContainSubstring(`qr_document_scan_outcomes_total{outcome="accepted"} 1`))
		Expect(out).To(ContainSubstring(`qr_document_scan_outcomes_total{outcome="rejected"} 2`))

		families, err := m.Registry().Gather()
		Expect(err).NotTo(HaveOccurred())
		for _, mf := range families {
			if mf.GetName() == "qr_document_scan_outcomes_total" {
				Expect(mf.GetMetric()).To(HaveLen(2))
			}
		}
	})

	It("should be safe to use when disabled", func() {
		var disabled *metrics.Metrics
		Expect(func() {
			disabled.ObserveHTTPRequest(http.MethodGet, "/", 200, time.Millisecond)
			disabled.ObserveUpstream("get_user", 200, time.Millisecond)
			disabled.FrameDiscarded()
			disabled.SessionOpened("issue")
		}).NotTo(Panic())

		rec := httptest.NewRecorder()
		disabled.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
	})
})
