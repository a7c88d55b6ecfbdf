package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/qr-document/api"
	"github.com/frahmantamala/qr-document/internal/docapi"
	"github.com/frahmantamala/qr-document/internal/docserver"
	"github.com/frahmantamala/qr-document/internal/transport/middleware"
	"github.com/frahmantamala/qr-document/internal/transport/swagger"
	"github.com/frahmantamala/qr-document/internal/workflow"
)

type Options struct {
	AllowedOrigins string
	// Validator, when set, checks requests against the OpenAPI document.
	Validator      func(http.Handler) http.Handler
	Metrics        middleware.RequestObserver
	MetricsPath    string
	MetricsHandler http.Handler
	HealthChecks   map[string]Checker
}

func applyGlobalMiddleware(router *chi.Mux, opts Options, logger *slog.Logger) {
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.Metrics(opts.Metrics))
	router.Use(middleware.LoggingMiddleware(logger))
}

// RegisterRoutes mounts the workflow API used by the generate and scan pages.
func RegisterRoutes(router *chi.Mux, handler *workflow.Handler, opts Options, logger *slog.Logger) {
	healthHandler := NewHealthHandler(opts.HealthChecks)

	applyGlobalMiddleware(router, opts, logger)

	router.Get(swagger.DefaultDocURL, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(api.OpenAPI)
	})
	router.Handle("/swagger/*", swagger.Handler(swagger.DefaultDocURL))

	if opts.MetricsHandler != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, opts.MetricsHandler)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Group(func(vr chi.Router) {
			if opts.Validator != nil {
				vr.Use(opts.Validator)
			}

			vr.Get("/document-types", handler.DocumentTypes)
			vr.Post("/generate-qr/{userId}", handler.OpenIssueSession)
			vr.Post("/scan-qr/{userId}", handler.OpenScanSession)

			vr.Route("/sessions/{sessionId}", func(sr chi.Router) {
				sr.Use(middleware.SessionContext)

				sr.Get("/", handler.GetSession)
				sr.Delete("/", handler.CloseSession)

				sr.Put("/form", handler.UpdateForm)
				sr.Post("/issue", handler.Issue)
				sr.Get("/qr.png", handler.QRCode)
				sr.Get("/slip.pdf", handler.Slip)

				sr.Post("/scan/start", handler.StartScan)
				sr.Post("/scan/stop", handler.StopScan)
				sr.Post("/scan/frames", handler.SubmitFrame)
			})
		})
	})
}

// RegisterDocServerRoutes mounts the stand-in document API on the same paths
// the workflow's client calls.
func RegisterDocServerRoutes(router *chi.Mux, handler *docserver.Handler, opts Options, logger *slog.Logger) {
	healthHandler := NewHealthHandler(opts.HealthChecks)

	applyGlobalMiddleware(router, opts, logger)

	router.Get("/health", healthHandler.healthCheckHandler)
	router.Get("/ping", healthHandler.pingHandler)

	router.Get(docapi.PathGetUser, handler.GetUser)
	router.Post(docapi.PathGenerateQR, handler.GenerateQR)
	router.Post(docapi.PathScanQR, handler.ScanQR)
}
