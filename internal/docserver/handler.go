package docserver

import (
	"context"
	"net/http"

	"github.com/frahmantamala/qr-document/internal/document"
	"github.com/frahmantamala/qr-document/internal/scan"
	"github.com/frahmantamala/qr-document/internal/transport"
	"github.com/frahmantamala/qr-document/internal/user"
)

type ServiceAPI interface {
	GetUser(ctx context.Context, userID string) (user.Record, error)
	IssueDocument(ctx context.Context, sub document.Submission) (document.Receipt, error)
	VerifyScan(ctx context.Context, req scan.VerifyRequest) (scan.Verdict, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// GetUser serves GET /api/admin/get-user?userId=
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.GetUser(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rec)
}

// GenerateQR serves POST /api/clerk/generate-qr
func (h *Handler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	var sub document.Submission
	if err := h.DecodeJSON(r, &sub); err != nil {
		h.HandleError(w, r, err)
		return
	}

	receipt, err := h.Service.IssueDocument(r.Context(), sub)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, receipt)
}

// ScanQR serves POST /api/user/scan-qr
func (h *Handler) ScanQR(w http.ResponseWriter, r *http.Request) {
	var req scan.VerifyRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleError(w, r, err)
		return
	}

	verdict, err := h.Service.VerifyScan(r.Context(), req)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, verdict)
}
