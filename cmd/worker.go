package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/qr-document/internal/core/events"
	"github.com/frahmantamala/qr-document/internal/metrics"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers such as the workflow event bus.`,
}

// Event Bus worker command
var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Start event bus worker",
	Long:  `Start the event bus with the audit log and metrics subscribers attached`,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

var workerMetricsAddr string

// newEventBus wires the workflow subscribers onto a fresh bus.
func newEventBus(withMetrics bool) (*events.EventBus, *metrics.Metrics) {
	lg := loggerForCommand()
	bus := events.NewEventBus(lg)
	events.RegisterAuditLog(bus, lg)

	if !withMetrics {
		return bus, nil
	}
	m := metrics.New()
	m.Subscribe(bus)
	return bus, m
}

func startEventWorker() {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := setupLogger(cfg)

	bus, m := newEventBus(true)
	for _, eventType := range events.WorkflowEventTypes {
		logger.Info("event subscription", "event_type", eventType, "handlers", bus.HandlerCount(eventType))
	}

	server := &http.Server{
		Addr:              workerMetricsAddr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
		}
	}()

	logger.Info("event bus worker started. Waiting for events...", "metrics_addr", workerMetricsAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("received signal, shutting down event bus", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		_ = server.Shutdown(ctx)
		bus.Wait()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		logger.Info("event bus shutdown complete")
	case <-ctx.Done():
		logger.Warn("shutdown timeout reached, forcing exit")
	}
}

func init() {
	eventWorkerCmd.Flags().StringVar(&workerMetricsAddr, "metrics-addr", ":9100", "address for the worker's metrics endpoint")

	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
