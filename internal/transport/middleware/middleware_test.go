package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/qr-document/api"
	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/transport/middleware"
	"github.com/frahmantamala/qr-document/pkg/logger"
)

type observation struct {
	method string
	route  string
	status int
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (o *recordingObserver) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs = append(o.obs, observation{method: method, route: route, status: status})
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

var _ = Describe("CORS", func() {
	It("should echo an allowed origin", func() {
		h := middleware.CORS("https://pages.example.com, https://admin.example.com")(ok)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://admin.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://admin.example.com"))
	})

	It("should not allow an unknown origin", func() {
		h := middleware.CORS("https://pages.example.com")(ok)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})

	It("should answer preflight requests itself", func() {
		called := false
		h := middleware.CORS("*")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

		req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions/x/form", nil)
		req.Header.Set("Origin", "https://pages.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		Expect(called).To(BeFalse())
	})
})

var _ = Describe("RequestID", func() {
	It("should keep an incoming trace id", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.TraceHeader, "trace-1")
		rec := httptest.NewRecorder()
		middleware.RequestID(ok).ServeHTTP(rec, req)

		Expect(rec.Header().Get(middleware.TraceHeader)).To(Equal("trace-1"))
	})

	It("should generate one when missing", func() {
		rec := httptest.NewRecorder()
		middleware.RequestID(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Header().Get(middleware.TraceHeader)).To(HaveLen(36))
	})
})

var _ = Describe("SessionContext", func() {
	It("should put the session id on the request context", func() {
		var seen string
		router := chi.NewRouter()
		router.With(middleware.SessionContext).Get("/sessions/{sessionId}", func(w http.ResponseWriter, r *http.Request) {
			seen = internal.SessionIDFromContext(r.Context())
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions/abc-123", nil))
		Expect(seen).To(Equal("abc-123"))
	})
})

var _ = Describe("Metrics", func() {
	It("should label requests by route pattern", func() {
		observer := &recordingObserver{}
		router := chi.NewRouter()
		router.Use(middleware.Metrics(observer))
		router.Post("/sessions/{sessionId}/issue", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sessions/a/issue", nil))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

		Expect(observer.obs).To(Equal([]observation{
			{method: http.MethodPost, route: "/sessions/{sessionId}/issue", status: http.StatusCreated},
			{method: http.MethodGet, route: "unmatched", status: http.StatusNotFound},
		}))
	})

	It("should pass through without an observer", func() {
		rec := httptest.NewRecorder()
		middleware.Metrics(nil)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("should turn a panic into a 500 error body", func() {
		h := middleware.RecoveryMiddleware(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		var resp internal.Response
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Error.Code).To(Equal(internal.ErrCodeInternal))
	})
})

var _ = Describe("LoggingMiddleware", func() {
	It("should filter sensitive fields and summarise binary bodies", func() {
		var buf bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&buf, nil))

		h := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
		}))

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x","api_key":"k"}`))
		req.Header.Set("Authorization", "Bearer secret")
		h.ServeHTTP(httptest.NewRecorder(), req)

		out := buf.String()
		Expect(out).NotTo(ContainSubstring("Bearer secret"))
		Expect(out).To(ContainSubstring(`[FILTERED]`))
		Expect(out).To(ContainSubstring(`"body":"[binary]"`))
		Expect(out).To(ContainSubstring(`"response_size":4`))
	})
})

var _ = Describe("RequestValidator", func() {
	var router *chi.Mux

	BeforeEach(func() {
		doc, err := middleware.LoadOpenAPI(context.Background(), api.OpenAPI)
		Expect(err).NotTo(HaveOccurred())
		validator, err := middleware.RequestValidator(doc, logger.Discard())
		Expect(err).NotTo(HaveOccurred())

		router = chi.NewRouter()
		router.Use(validator)
		router.Post("/api/v1/sessions/{sessionId}/scan/frames", ok)
		router.Get("/internal/unlisted", ok)
	})

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("should accept a described request", func() {
		Expect(post("/api/v1/sessions/s-1/scan/frames", `{"text":"{\"id\":\"doc-1\"}"}`).Code).To(Equal(http.StatusOK))
	})

	It("should reject a frame without text", func() {
		rec := post("/api/v1/sessions/s-1/scan/frames", `{}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		var resp internal.Response
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Error.FieldErrors()).To(HaveLen(1))
		Expect(resp.Error.FieldErrors()[0].Field).To(Equal("body"))
	})

	It("should let undescribed paths through", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/unlisted", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})
})
