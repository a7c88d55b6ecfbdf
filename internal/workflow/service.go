package workflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/document"
	"github.com/frahmantamala/qr-document/internal/metrics"
	"github.com/frahmantamala/qr-document/internal/qrcode"
	"github.com/frahmantamala/qr-document/internal/scan"
	"github.com/frahmantamala/qr-document/internal/session"
	"github.com/frahmantamala/qr-document/internal/slip"
	"github.com/frahmantamala/qr-document/internal/user"
)

type Dependencies struct {
	Store        session.Store
	Resolver     *user.Resolver
	Issuance     *document.Coordinator
	Verification *scan.Coordinator
	Encoder      *qrcode.Encoder
	Slips        *slip.Renderer
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Service runs the issuance and verification workflows against stored sessions.
// Every state change goes through Store.Update; network calls happen between
// two updates so the store is never locked across a remote call.
type Service struct {
	store        session.Store
	resolver     *user.Resolver
	issuance     *document.Coordinator
	verification *scan.Coordinator
	encoder      *qrcode.Encoder
	slips        *slip.Renderer
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewService(deps Dependencies) *Service {
	encoder := deps.Encoder
	if encoder == nil {
		encoder = qrcode.NewEncoder()
	}
	slips := deps.Slips
	if slips == nil {
		slips = slip.NewRenderer()
	}
	return &Service{
		store:        deps.Store,
		resolver:     deps.Resolver,
		issuance:     deps.Issuance,
		verification: deps.Verification,
		encoder:      encoder,
		slips:        slips,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
	}
}

// Open creates a session for the route user and resolves the user once.
// A failed resolution is recorded on the session, not returned.
func (s *Service) Open(ctx context.Context, kind session.Kind, userID string) (*session.Session, error) {
	sess := session.New(kind, userID)
	if sess.Identity.State == user.StatePending {
		sess.Identity.State = user.StateResolving
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.metrics.SessionOpened(string(kind))
	s.logger.Info("session opened", "session_id", sess.ID, "kind", kind, "user_id", userID)

	if sess.Identity.State != user.StateResolving {
		return sess, nil
	}

	identity := sess.Identity
	if err := s.resolver.Ensure(ctx, &identity); err != nil {
		s.logger.Warn("user resolution failed", "session_id", sess.ID, "user_id", userID, "error", err)
	}

	return s.store.Update(context.WithoutCancel(ctx), sess.ID, func(stored *session.Session) error {
		if stored.Identity.State == user.StateResolving {
			stored.Identity = identity
		}
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id string) (*session.Session, error) {
	return s.store.Get(ctx, id)
}

// UpdateForm replaces the in-progress candidate. Field errors are recorded on
// the session rather than returned, so partially edited input is never rejected.
func (s *Service) UpdateForm(ctx context.Context, id string, candidate document.Candidate) (*session.Session, error) {
	return s.store.Update(ctx, id, func(sess *session.Session) error {
		if err := requireKind(sess, session.KindIssue); err != nil {
			return err
		}
		if sess.Issuance.InFlight() {
			return internal.ErrSubmissionInFlight
		}
		sess.Issuance.Form = candidate
		sess.Issuance.FieldErrors = nil
		if _, err := document.Validate(candidate); err != nil {
			if appErr, ok := internal.AsAppError(err); ok {
				sess.Issuance.FieldErrors = appErr.FieldErrors()
			}
		}
		return nil
	})
}

// Issue submits the session's form once. A second call while the first is in
// flight fails with ErrSubmissionInFlight.
func (s *Service) Issue(ctx context.Context, id string) (*session.Session, error) {
	var (
		pending   document.Pending
		rejection error
	)

	sess, err := s.store.Update(ctx, id, func(sess *session.Session) error {
		if err := requireKind(sess, session.KindIssue); err != nil {
			return err
		}
		p, err := s.issuance.Begin(&sess.Issuance, sess.Identity)
		if err != nil {
			if internal.IsType(err, internal.ErrorTypeValidation) {
				// keep the field errors on the session
				rejection = err
				return nil
			}
			return err
		}
		pending = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return sess, rejection
	}

	doc, artifact, submitErr := s.issuance.Submit(internal.ContextWithSessionID(ctx, id), pending)

	final, err := s.store.Update(context.WithoutCancel(ctx), id, func(sess *session.Session) error {
		s.issuance.Finish(&sess.Issuance, doc, artifact, submitErr)
		return nil
	})
	if err != nil {
		if internal.IsType(err, internal.ErrorTypeNotFound) {
			s.logger.Info("session closed during issuance, result dropped", "session_id", id)
		}
		return nil, err
	}
	return final, submitErr
}

func (s *Service) StartScan(ctx context.Context, id string) (*session.Session, error) {
	return s.store.Update(ctx, id, func(sess *session.Session) error {
		if err := requireKind(sess, session.KindScan); err != nil {
			return err
		}
		return s.verification.Start(&sess.Verification, sess.Identity)
	})
}

func (s *Service) StopScan(ctx context.Context, id string) (*session.Session, error) {
	return s.store.Update(ctx, id, func(sess *session.Session) error {
		if err := requireKind(sess, session.KindScan); err != nil {
			return err
		}
		s.verification.Stop(&sess.Verification)
		return nil
	})
}

// SubmitFrame feeds one decoded frame to the verification workflow. Malformed
// frames are counted and dropped; scanning stays active. A well-formed frame is
// verified exactly once and ends the scan.
func (s *Service) SubmitFrame(ctx context.Context, id, text string) (*session.Session, error) {
	var (
		pending   scan.Pending
		discarded error
	)

	sess, err := s.store.Update(ctx, id, func(sess *session.Session) error {
		if err := requireKind(sess, session.KindScan); err != nil {
			return err
		}
		p, err := s.verification.Begin(&sess.Verification, sess.Identity, text)
		if err != nil {
			if internal.IsType(err, internal.ErrorTypeVerification) {
				discarded = err
				// malformed frames still advance the throttle window
				return nil
			}
			return err
		}
		pending = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if discarded != nil {
		if errors.Is(discarded, internal.ErrMalformedPayload) || errors.Is(discarded, internal.ErrFrameThrottled) {
			s.metrics.FrameDiscarded()
		}
		return sess, discarded
	}

	outcome, verifyErr := s.verification.Submit(internal.ContextWithSessionID(ctx, id), pending)

	final, err := s.store.Update(context.WithoutCancel(ctx), id, func(sess *session.Session) error {
		s.verification.Finish(&sess.Verification, outcome, verifyErr)
		return nil
	})
	if err != nil {
		if internal.IsType(err, internal.ErrorTypeNotFound) {
			s.logger.Info("session closed during verification, result dropped", "session_id", id)
		}
		return nil, err
	}
	return final, verifyErr
}

// Close ends the session. Results of calls still in flight are dropped.
func (s *Service) Close(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("session closed", "session_id", id)
	return nil
}

// QRCode renders the last artifact reference of the session as a PNG.
func (s *Service) QRCode(ctx context.Context, id string, size int) ([]byte, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Issuance.Artifact == "" {
		return nil, internal.ErrNoArtifact
	}
	png, err := s.encoder.PNG(string(sess.Issuance.Artifact), size)
	if err != nil {
		return nil, internal.NewInternalError("failed to render qr code", err)
	}
	return png, nil
}

// Slip renders a printable PDF for the last issued document of the session.
func (s *Service) Slip(ctx context.Context, id string) ([]byte, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Issuance.Document == nil || sess.Issuance.Artifact == "" {
		return nil, internal.ErrNoArtifact
	}
	png, err := s.encoder.PNG(string(sess.Issuance.Artifact), qrcode.DefaultSize)
	if err != nil {
		return nil, internal.NewInternalError("failed to render qr code", err)
	}
	pdf, err := s.slips.Render(*sess.Issuance.Document, png)
	if err != nil {
		return nil, internal.NewInternalError("failed to render slip", err)
	}
	return pdf, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func requireKind(sess *session.Session, kind session.Kind) error {
	if sess.Kind != kind {
		return internal.NewConflictError("operation is not available for a "+string(sess.Kind)+" session", internal.ErrCodeWrongSessionKind)
	}
	return nil
}
