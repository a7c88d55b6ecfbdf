package document

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
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Issuer is the remote issue-document operation.
type Issuer interface {
	IssueDocument(ctx context.Context, s Submission) (Receipt, error)
}

// IssuanceState is the issuance part of a session.
type IssuanceState struct {
	Phase       Phase                      `json:"phase"`
	Form        Candidate                  `json:"form"`
	FieldErrors []internal.ValidationError `json:"field_errors,omitempty"`
	Document    *IssuedDocument            `json:"document,omitempty"`
	Artifact    ArtifactRef                `json:"artifact,omitempty"`
	Err         *internal.AppError         `json:"error,omitempty"`
}

func NewIssuanceState() IssuanceState {
	return IssuanceState{
		Phase: PhaseIdle,
		Form:  InitialCandidate(),
	}
}

func (s IssuanceState) InFlight() bool {
	return s.Phase == PhaseSubmitting
}

// Pending is a submission that passed every precondition but has not been sent yet.
type Pending struct {
	Request    Request
	Department string
}

type Coordinator struct {
	issuer    Issuer
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewCoordinator(issuer Issuer, publisher events.Publisher, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		issuer:    issuer,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for IssuedAt.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Begin checks the preconditions against state and moves it to Submitting.
// Nothing is sent; the caller passes the result to Submit.
func (c *Coordinator) Begin(state *IssuanceState, identity user.Identity) (Pending, error) {
	if state.InFlight() {
		return Pending{}, internal.ErrSubmissionInFlight
	}

	rec, err := identity.Require()
	if err != nil {
		return Pending{}, err
	}

	req, err := Validate(state.Form)
	if err != nil {
		if appErr, ok := internal.AsAppError(err); ok {
			state.FieldErrors = appErr.FieldErrors()
		}
		return Pending{}, err
	}

	state.FieldErrors = nil
	state.Err = nil
	state.Phase = PhaseSubmitting

	return Pending{Request: req, Department: rec.Department}, nil
}

// Submit sends p to the issuer exactly once. It never retries.
func (c *Coordinator) Submit(ctx context.Context, p Pending) (IssuedDocument, ArtifactRef, error) {
	sessionID := internal.SessionIDFromContext(ctx)
	submission := p.Request.Submission(p.Department)

	receipt, err := c.issuer.IssueDocument(ctx, submission)
	if err == nil && (receipt.ID == "" || receipt.URL == "") {
		err = internal.NewTransportError("document API response is missing id or url", nil)
	}
	if err != nil {
		appErr, ok := internal.AsAppError(err)
		if !ok {
			appErr = internal.NewTransportError("issue-document failed", err)
		}
		c.logger.Warn("document issuance failed",
			"session_id", sessionID,
			"department", p.Department,
			"error_type", appErr.Type,
			"error", appErr)
		c.publish(ctx, events.NewDocumentIssueFailedEvent(sessionID, p.Department, string(appErr.Type), appErr.Message))
		return IssuedDocument{}, "", appErr
	}

	doc := IssuedDocument{
		ID:         receipt.ID,
		Title:      submission.Title,
		Amount:     submission.Amount,
		Type:       submission.Type,
		Department: submission.Department,
		IssuedAt:   c.now(),
	}

	c.logger.Info("document issued",
		"session_id", sessionID,
		"document_id", doc.ID,
		"type", doc.Type,
		"department", doc.Department)
	c.publish(ctx, events.NewDocumentIssuedEvent(sessionID, doc.ID, string(doc.Type), doc.Department, doc.Amount))

	return doc, ArtifactRef(receipt.URL), nil
}

// Finish records the outcome of Submit. Success resets the form to its initial
// values; failure keeps the form so the user can correct and resubmit.
func (c *Coordinator) Finish(state *IssuanceState, doc IssuedDocument, artifact ArtifactRef, err error) {
	if err != nil {
		appErr, ok := internal.AsAppError(err)
		if !ok {
			appErr = internal.NewTransportError("issue-document failed", err)
		}
		state.Phase = PhaseFailed
		state.Err = appErr
		return
	}

	state.Phase = PhaseSucceeded
	state.Document = &doc
	state.Artifact = artifact
	state.Err = nil
	state.FieldErrors = nil
	state.Form = InitialCandidate()
}

// Issue runs Begin, Submit and Finish against state in one call.
func (c *Coordinator) Issue(ctx context.Context, state *IssuanceState, identity user.Identity) (IssuedDocument, ArtifactRef, error) {
	pending, err := c.Begin(state, identity)
	if err != nil {
		return IssuedDocument{}, "", err
	}

	doc, artifact, err := c.Submit(ctx, pending)
	c.Finish(state, doc, artifact, err)
	return doc, artifact, err
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
