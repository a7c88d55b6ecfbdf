package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeDocumentIssued      = "document.issued"
	EventTypeDocumentIssueFailed = "document.issue_failed"
	EventTypeScanAccepted        = "scan.accepted"
	EventTypeScanRejected        = "scan.rejected"
)

var WorkflowEventTypes = []string{
	EventTypeDocumentIssued,
	EventTypeDocumentIssueFailed,
	EventTypeScanAccepted,
	EventTypeScanRejected,
}

type DocumentIssuedEvent struct {
	BaseEvent
	SessionID    string  `json:"session_id"`
	DocumentID   string  `json:"document_id"`
	DocumentType string  `json:"document_type"`
	Department   string  `json:"department"`
	Amount       float64 `json:"amount"`
}

func NewDocumentIssuedEvent(sessionID, documentID, documentType, department string, amount float64) *DocumentIssuedEvent {
	return &DocumentIssuedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDocumentIssued,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"session_id":    sessionID,
				"document_id":   documentID,
				"document_type": documentType,
				"department":    department,
				"amount":        amount,
			},
		},
		SessionID:    sessionID,
		DocumentID:   documentID,
		DocumentType: documentType,
		Department:   department,
		Amount:       amount,
	}
}

type DocumentIssueFailedEvent struct {
	BaseEvent
	SessionID  string `json:"session_id"`
	Department string `json:"department"`
	ErrorType  string `json:"error_type"`
	Reason     string `json:"reason"`
}

func NewDocumentIssueFailedEvent(sessionID, department, errorType, reason string) *DocumentIssueFailedEvent {
	return &DocumentIssueFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDocumentIssueFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"session_id": sessionID,
				"department": department,
				"error_type": errorType,
				"reason":     reason,
			},
		},
		SessionID:  sessionID,
		Department: department,
		ErrorType:  errorType,
		Reason:     reason,
	}
}

// ScanOutcomeEvent is published once per verification the server answered.
type ScanOutcomeEvent struct {
	BaseEvent
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id"`
	Department string `json:"department"`
	Accepted   bool   `json:"accepted"`
	Message    string `json:"message"`
}

func NewScanOutcomeEvent(sessionID, documentID, department string, accepted bool, message string) *ScanOutcomeEvent {
	eventType := EventTypeScanRejected
	if accepted {
		eventType = EventTypeScanAccepted
	}
	return &ScanOutcomeEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"session_id":  sessionID,
				"document_id": documentID,
				"department":  department,
				"accepted":    accepted,
				"message":     message,
			},
		},
		SessionID:  sessionID,
		DocumentID: documentID,
		Department: department,
		Accepted:   accepted,
		Message:    message,
	}
}
