package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/core/events"
	"github.com/frahmantamala/qr-document/internal/user"
)

type Phase string

const (
	PhaseAwaitingScan Phase = "awaiting_scan"
	PhaseDecoding     Phase = "decoding"
	PhaseSubmitting   Phase = "submitting"
	PhaseAccepted     Phase = "accepted"
	PhaseRejected     Phase = "rejected"
	PhaseFailed       Phase = "failed"
)

// VerifyRequest is the verify-scan request body.
type VerifyRequest struct {
	DocumentID     string `json:"documentId"`
	UserDepartment string `json:"userDepartment"`
}

// Verdict is the server's answer to an accepted scan.
type Verdict struct {
	Message string `json:"message"`
}

// Verifier is the remote verify-scan operation. A rejection by the server is
// returned as an *internal.AppError of type VERIFICATION_ERROR.
type Verifier interface {
	VerifyScan(ctx context.Context, req VerifyRequest) (Verdict, error)
}

type Outcome struct {
	DocumentID string             `json:"document_id"`
	Accepted   bool               `json:"accepted"`
	Message    string             `json:"message"`
	Code       internal.ErrorCode `json:"code,omitempty"`
	At         time.Time          `json:"at"`
}

// VerificationState is the scanning part of a session.
type VerificationState struct {
	Active      bool               `json:"active"`
	Phase       Phase              `json:"phase"`
	LastFrameAt time.Time          `json:"last_frame_at"`
	Payload     *Payload           `json:"payload,omitempty"`
	Outcome     *Outcome           `json:"outcome,omitempty"`
	Err         *internal.AppError `json:"error,omitempty"`
	Discarded   int                `json:"discarded_frames"`
}

func NewVerificationState() VerificationState {
	return VerificationState{Phase: PhaseAwaitingScan}
}

func (s VerificationState) InFlight() bool {
	return s.Phase == PhaseSubmitting
}

type Pending struct {
	Payload    Payload
	Department string
}

type Coordinator struct {
	verifier      Verifier
	publisher     events.Publisher
	logger        *slog.Logger
	frameInterval time.Duration
	now           func() time.Time
}

func NewCoordinator(verifier Verifier, publisher events.Publisher, frameInterval time.Duration, logger *slog.Logger) *Coordinator {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Coordinator{
		verifier:      verifier,
		publisher:     publisher,
		logger:        logger,
		frameInterval: frameInterval,
		now:           time.Now,
	}
}

// WithClock replaces the clock used for the frame throttle and outcome timestamps.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// ClientThrottled hands frame cadence to the caller, typically a FrameThrottle
// in front of the coordinator. Begin then accepts every frame it is given.
func (c *Coordinator) ClientThrottled() *Coordinator {
	c.frameInterval = 0
	return c
}

// Start begins a scan. It is the only way scanning becomes active.
func (c *Coordinator) Start(state *VerificationState, identity user.Identity) error {
	if _, err := identity.Require(); err != nil {
		return err
	}
	if state.InFlight() {
		return internal.ErrSubmissionInFlight
	}

	state.Active = true
	state.Phase = PhaseAwaitingScan
	state.Payload = nil
	state.Outcome = nil
	state.Err = nil
	state.LastFrameAt = time.Time{}
	return nil
}

func (c *Coordinator) Stop(state *VerificationState) {
	state.Active = false
	if state.Phase == PhaseDecoding {
		state.Phase = PhaseAwaitingScan
	}
}

// Begin decodes one frame of scanned text. A malformed frame is discarded and
// scanning stays active. A well-formed frame ends the scan and moves state to
// Submitting; the user has to start scanning again for the next code.
func (c *Coordinator) Begin(state *VerificationState, identity user.Identity, text string) (Pending, error) {
	rec, err := identity.Require()
	if err != nil {
		return Pending{}, err
	}
	if state.InFlight() {
		return Pending{}, internal.ErrSubmissionInFlight
	}
	if !state.Active {
		return Pending{}, internal.ErrScanInactive
	}

	now := c.now()
	if c.frameInterval > 0 && !state.LastFrameAt.IsZero() && now.Sub(state.LastFrameAt) < c.frameInterval {
		return Pending{}, internal.ErrFrameThrottled
	}
	state.LastFrameAt = now
	state.Phase = PhaseDecoding

	payload, err := ParsePayload(text)
	if err != nil {
		state.Phase = PhaseAwaitingScan
		state.Discarded++
		c.logger.Debug("discarded malformed scan frame", "error", err)
		return Pending{}, err
	}

	state.Active = false
	state.Phase = PhaseSubmitting
	state.Payload = &payload
	state.Err = nil

	return Pending{Payload: payload, Department: rec.Department}, nil
}

// Submit forwards the payload and the scanning department once and reports the
// server's decision. Only transport failures come back as an error.
func (c *Coordinator) Submit(ctx context.Context, p Pending) (Outcome, error) {
	sessionID := internal.SessionIDFromContext(ctx)
	req := VerifyRequest{
		DocumentID:     p.Payload.DocumentID,
		UserDepartment: p.Department,
	}

	verdict, err := c.verifier.VerifyScan(ctx, req)
	if err != nil {
		appErr, ok := internal.AsAppError(err)
		if !ok || appErr.Type != internal.ErrorTypeVerification {
			if !ok {
				appErr = internal.NewTransportError("verify-scan failed", err)
			}
			c.logger.Warn("scan verification failed",
				"session_id", sessionID,
				"document_id", req.DocumentID,
				"error", appErr)
			return Outcome{}, appErr
		}

		outcome := Outcome{
			DocumentID: req.DocumentID,
			Accepted:   false,
			Message:    appErr.Message,
			Code:       appErr.Code,
			At:         c.now(),
		}
		c.logger.Info("scan rejected",
			"session_id", sessionID,
			"document_id", req.DocumentID,
			"department", req.UserDepartment,
			"reason", outcome.Message)
		c.publish(ctx, events.NewScanOutcomeEvent(sessionID, req.DocumentID, req.UserDepartment, false, outcome.Message))
		return outcome, nil
	}

	outcome := Outcome{
		DocumentID: req.DocumentID,
		Accepted:   true,
		Message:    verdict.Message,
		At:         c.now(),
	}
	c.logger.Info("scan accepted",
		"session_id", sessionID,
		"document_id", req.DocumentID,
		"department", req.UserDepartment)
	c.publish(ctx, events.NewScanOutcomeEvent(sessionID, req.DocumentID, req.UserDepartment, true, outcome.Message))
	return outcome, nil
}

func (c *Coordinator) Finish(state *VerificationState, outcome Outcome, err error) {
	if err != nil {
		appErr, ok := internal.AsAppError(err)
		if !ok {
			appErr = internal.NewTransportError("verify-scan failed", err)
		}
		state.Phase = PhaseFailed
		state.Err = appErr
		return
	}

	state.Outcome = &outcome
	state.Err = nil
	if outcome.Accepted {
		state.Phase = PhaseAccepted
	} else {
		state.Phase = PhaseRejected
	}
}

// Verify runs Begin, Submit and Finish for one frame of scanned text.
func (c *Coordinator) Verify(ctx context.Context, state *VerificationState, identity user.Identity, text string) (Outcome, error) {
	pending, err := c.Begin(state, identity, text)
	if err != nil {
		return Outcome{}, err
	}

	outcome, err := c.Submit(ctx, pending)
	c.Finish(state, outcome, err)
	return outcome, err
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
