package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/qr-document/api"
	"github.com/frahmantamala/qr-document/internal/metrics"
	"github.com/frahmantamala/qr-document/internal/session"
	"github.com/frahmantamala/qr-document/internal/transport"
	"github.com/frahmantamala/qr-document/internal/transport/rest"
	"github.com/frahmantamala/qr-document/internal/workflow"
	"github.com/frahmantamala/qr-document/pkg/logger"
)

var _ = Describe("RegisterRoutes", func() {
	var (
		router  *chi.Mux
		m       *metrics.Metrics
		storeOK bool
	)

	BeforeEach(func() {
		lg := logger.Discard()
		storeOK = true
		m = metrics.New()

		service := workflow.NewService(workflow.Dependencies{
			Store:   session.NewMemoryStore(0, lg),
			Metrics: m,
			Logger:  lg,
		})
		handler := workflow.NewHandler(transport.NewBaseHandler(lg), service)

		router = chi.NewRouter()
		rest.RegisterRoutes(router, handler, rest.Options{
			AllowedOrigins: "*",
			Metrics:        m,
			MetricsPath:    "/metrics",
			MetricsHandler: m.Handler(),
			HealthChecks: map[string]rest.Checker{
				"session_store": func(context.Context) error {
					if !storeOK {
						return errors.New("unreachable")
					}
					return nil
				},
			},
		}, lg)
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	It("should answer ping", func() {
		rec := get("/api/v1/ping")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"status":"OK"}`))
	})

	It("should report component health", func() {
		rec := get("/api/v1/health")
		Expect(rec.Code).To(Equal(http.StatusOK))

		storeOK = false
		rec = get("/api/v1/health")
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))

		var resp rest.HealthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Components["session_store"].Status).To(Equal(rest.HealthUnhealthy))
		Expect(resp.Components["session_store"].Message).To(Equal("unreachable"))
	})

	It("should serve the embedded api description", func() {
		rec := get("/openapi.yml")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Bytes()).To(Equal(api.OpenAPI))
	})

	It("should trace requests and count them by route", func() {
		rec := get("/api/v1/document-types")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("X-Trace-ID")).NotTo(BeEmpty())

		scrape := get("/metrics")
		Expect(scrape.Body.String()).To(ContainSubstring(`route="/api/v1/document-types"`))
	})

	It("should answer 404 for unknown sessions with the session context applied", func() {
		rec := get("/api/v1/sessions/unknown")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})
})
