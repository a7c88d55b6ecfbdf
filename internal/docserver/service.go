package docserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/core/common/validation"
	documentDatamodel "github.com/frahmantamala/qr-document/internal/core/datamodel/document"
	"github.com/frahmantamala/qr-document/internal/document"
	"github.com/frahmantamala/qr-document/internal/scan"
	"github.com/frahmantamala/qr-document/internal/user"
)

const MessageReceived = "document received"

// column widths in db/migrations
const (
	maxIDLength         = 64
	maxDepartmentLength = 64
)

// Service is a local stand-in for the remote document API. It answers the same
// three operations the workflow consumes.
type Service struct {
	users  UserRepository
	docs   DocumentRepository
	logger *slog.Logger
}

var (
	_ user.Directory  = (*Service)(nil)
	_ document.Issuer = (*Service)(nil)
	_ scan.Verifier   = (*Service)(nil)
)

func NewService(users UserRepository, docs DocumentRepository, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		docs:   docs,
		logger: logger,
	}
}

func (s *Service) GetUser(ctx context.Context, userID string) (user.Record, error) {
	v := validation.NewValidator()
	v.Field("userId", userID).Required()
	if appErr := v.Validate(); appErr != nil {
		return user.Record{}, appErr
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load user", "user_id", userID, "error", err)
		return user.Record{}, internal.NewInternalError("failed to load user", err)
	}
	if u == nil || !u.IsActive {
		return user.Record{}, internal.NewNotFoundError("user not found", internal.ErrCodeUserNotFound)
	}

	return user.Record{ID: u.ID, Department: u.Department}, nil
}

// IssueDocument re-validates the submission with the same rules the form uses
// and records the document. The returned url is the QR payload for the new id.
func (s *Service) IssueDocument(ctx context.Context, sub document.Submission) (document.Receipt, error) {
	candidate := document.Candidate{
		Title:  sub.Title,
		Amount: document.Amount(strconv.FormatFloat(sub.Amount, 'f', -1, 64)),
		Type:   sub.Type,
	}
	req, err := document.Validate(candidate)
	if err != nil {
		return document.Receipt{}, err
	}
	v := validation.NewValidator()
	v.Field("department", sub.Department).Required().MaxLength(maxDepartmentLength)
	if appErr := v.Validate(); appErr != nil {
		return document.Receipt{}, appErr
	}

	doc := &documentDatamodel.Document{
		ID:               uuid.NewString(),
		Title:            req.Title(),
		Amount:           req.Amount(),
		Type:             string(req.Type()),
		DepartmentOrigin: sub.Department,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		s.logger.Error("failed to store document", "error", err)
		return document.Receipt{}, internal.NewInternalError("failed to store document", err)
	}

	s.logger.Info("document stored", "document_id", doc.ID, "department", doc.DepartmentOrigin, "type", doc.Type)
	return document.Receipt{ID: doc.ID, URL: scan.EncodePayload(doc.ID)}, nil
}

// VerifyScan accepts a scan only from the department the document originated in,
// and only once per document.
func (s *Service) VerifyScan(ctx context.Context, req scan.VerifyRequest) (scan.Verdict, error) {
	v := validation.NewValidator()
	v.Field("documentId", req.DocumentID).Required().MaxLength(maxIDLength)
	v.Field("userDepartment", req.UserDepartment).Required().MaxLength(maxDepartmentLength)
	if appErr := v.Validate(); appErr != nil {
		return scan.Verdict{}, appErr
	}

	doc, err := s.docs.GetByID(ctx, req.DocumentID)
	if err != nil {
		s.logger.Error("failed to load document", "document_id", req.DocumentID, "error", err)
		return scan.Verdict{}, internal.NewInternalError("failed to load document", err)
	}
	if doc == nil {
		return scan.Verdict{}, internal.NewVerificationError("document not found", internal.ErrCodeDocumentNotFound, http.StatusNotFound)
	}
	if doc.DepartmentOrigin != req.UserDepartment {
		s.logger.Info("scan from another department refused",
			"document_id", doc.ID,
			"origin", doc.DepartmentOrigin,
			"scanner", req.UserDepartment)
		return scan.Verdict{}, internal.NewForbiddenError("department mismatch", internal.ErrCodeDepartmentDenied)
	}

	err = s.docs.RecordReceipt(ctx, &documentDatamodel.Receipt{
		DocumentID: doc.ID,
		Department: req.UserDepartment,
	})
	if errors.Is(err, ErrAlreadyReceived) {
		return scan.Verdict{}, internal.NewVerificationError("document already scanned", internal.ErrCodeAlreadyScanned, http.StatusConflict)
	}
	if err != nil {
		s.logger.Error("failed to record receipt", "document_id", doc.ID, "error", err)
		return scan.Verdict{}, internal.NewInternalError("failed to record receipt", err)
	}

	s.logger.Info("document received", "document_id", doc.ID, "department", req.UserDepartment)
	return scan.Verdict{Message: MessageReceived}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}
