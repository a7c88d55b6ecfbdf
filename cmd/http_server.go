package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/qr-document/api"
	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/transport"
	"github.com/frahmantamala/qr-document/internal/transport/middleware"
	"github.com/frahmantamala/qr-document/internal/transport/rest"
	"github.com/frahmantamala/qr-document/internal/workflow"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the workflow API used by the generate-QR and scan-QR pages`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	Router   *chi.Mux
	Workflow *workflowDeps
	Service  *workflow.Service
	Logger   *slog.Logger
	checks   map[string]rest.Checker
	cleanup  func()
}

func startHTTPServer() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.cleanup()

	if err := setupRoutes(deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "document_api", deps.Config.DocumentAPI.BaseURL)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	serve(server, deps.Logger, func() {
		deps.Workflow.Bus.Wait()
	})
}

// serve runs server until SIGINT/SIGTERM, then shuts it down and runs onStop.
func serve(server *http.Server, lg *slog.Logger, onStop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			lg.Error("Server shutdown error", "error", err)
		}
		if onStop != nil {
			onStop()
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	lg.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) error {
	opts := rest.Options{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		HealthChecks: map[string]rest.Checker{
			"session_store": deps.Service.Ping,
		},
	}
	for name, check := range deps.checks {
		opts.HealthChecks[name] = check
	}

	if m := deps.Workflow.Metrics; m != nil {
		opts.Metrics = m
		opts.MetricsHandler = m.Handler()
		opts.MetricsPath = deps.Config.Observability.Metrics.Path
	}

	if deps.Config.Server.ValidateRequests {
		doc, err := middleware.LoadOpenAPI(context.Background(), api.OpenAPI)
		if err != nil {
			return err
		}
		validator, err := middleware.RequestValidator(doc, deps.Logger)
		if err != nil {
			return err
		}
		opts.Validator = validator
	}

	handler := workflow.NewHandler(transport.NewBaseHandler(deps.Logger), deps.Service)
	rest.RegisterRoutes(deps.Router, handler, opts, deps.Logger)
	return nil
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if config.DocumentAPI.BaseURL == "" {
		return nil, errors.New("document_api.base_url is required")
	}

	lg := setupLogger(config)

	backend, err := sessionStore(ctx, config, lg)
	if err != nil {
		return nil, err
	}

	wf := newWorkflowDeps(config, lg)
	service := workflow.NewService(workflow.Dependencies{
		Store:        backend.Store,
		Resolver:     wf.Resolver,
		Issuance:     wf.Issuance,
		Verification: wf.Verification,
		Metrics:      wf.Metrics,
		Logger:       lg,
	})

	return &Dependencies{
		Config:   config,
		Router:   chi.NewRouter(),
		Workflow: wf,
		Service:  service,
		Logger:   lg,
		checks:   backend.Checks,
		cleanup:  backend.Close,
	}, nil
}
