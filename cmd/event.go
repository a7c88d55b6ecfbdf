package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/qr-document/internal/core/events"
	"github.com/frahmantamala/qr-document/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish sample workflow events and inspect the audit output`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a sample workflow event",
	Long:  `Publish a sample workflow event (document.issued, document.issue_failed, scan.accepted, scan.rejected) to a local bus`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishSampleEvent(cmd.Context(), args[0])
	},
}

var (
	eventDepartment string
	eventMessage    string
)

func loggerForCommand() *slog.Logger {
	return logger.LoggerWrapper()
}

// sampleEvent builds an event of eventType filled with the command's flags.
func sampleEvent(eventType string) (events.Event, error) {
	if !slices.Contains(events.WorkflowEventTypes, eventType) {
		return nil, fmt.Errorf("unknown event type %q, expected one of %v", eventType, events.WorkflowEventTypes)
	}

	documentID := uuid.NewString()
	switch eventType {
	case events.EventTypeDocumentIssued:
		return events.NewDocumentIssuedEvent("cli", documentID, "MEMORANDUM", eventDepartment, 1), nil
	case events.EventTypeDocumentIssueFailed:
		return events.NewDocumentIssueFailedEvent("cli", eventDepartment, "TRANSPORT_ERROR", eventMessage), nil
	case events.EventTypeScanAccepted:
		return events.NewScanOutcomeEvent("cli", documentID, eventDepartment, true, eventMessage), nil
	default:
		return events.NewScanOutcomeEvent("cli", documentID, eventDepartment, false, eventMessage), nil
	}
}

func publishSampleEvent(ctx context.Context, eventType string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lg := loggerForCommand()

	event, err := sampleEvent(eventType)
	if err != nil {
		return err
	}

	bus, _ := newEventBus(false)

	lg.Info("publishing sample event", "event_type", event.EventType(), "event_id", event.EventID())
	if err := bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	bus.Wait()
	lg.Info("sample event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventDepartment, "department", "FINANCE", "department carried by the event")
	publishEventCmd.Flags().StringVar(&eventMessage, "message", "sample event", "message or reason carried by the event")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
