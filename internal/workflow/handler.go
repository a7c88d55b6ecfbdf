package workflow

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/document"
	"github.com/frahmantamala/qr-document/internal/session"
	"github.com/frahmantamala/qr-document/internal/transport"
)

type ServiceAPI interface {
	Open(ctx context.Context, kind session.Kind, userID string) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	UpdateForm(ctx context.Context, id string, candidate document.Candidate) (*session.Session, error)
	Issue(ctx context.Context, id string) (*session.Session, error)
	StartScan(ctx context.Context, id string) (*session.Session, error)
	StopScan(ctx context.Context, id string) (*session.Session, error)
	SubmitFrame(ctx context.Context, id, text string) (*session.Session, error)
	Close(ctx context.Context, id string) error
	QRCode(ctx context.Context, id string, size int) ([]byte, error)
	Slip(ctx context.Context, id string) ([]byte, error)
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

type FrameRequest struct {
	Text string `json:"text"`
}

type DocumentTypesResponse struct {
	Types []document.TypeOption `json:"types"`
}

func (h *Handler) OpenIssueSession(w http.ResponseWriter, r *http.Request) {
	h.open(w, r, session.KindIssue)
}

func (h *Handler) OpenScanSession(w http.ResponseWriter, r *http.Request) {
	h.open(w, r, session.KindScan)
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request, kind session.Kind) {
	userID := chi.URLParam(r, "userId")

	sess, err := h.Service.Open(r.Context(), kind, userID)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/sessions/"+sess.ID)
	h.WriteJSON(w, http.StatusCreated, NewPageView(sess))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Service.Get(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewPageView(sess))
}

func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	var candidate document.Candidate
	if err := h.DecodeJSON(r, &candidate); err != nil {
		h.HandleError(w, r, err)
		return
	}

	sess, err := h.Service.UpdateForm(r.Context(), chi.URLParam(r, "sessionId"), candidate)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewPageView(sess))
}

func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Service.Issue(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, NewPageView(sess))
}

func (h *Handler) StartScan(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Service.StartScan(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewPageView(sess))
}

func (h *Handler) StopScan(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Service.StopScan(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewPageView(sess))
}

// SubmitFrame answers 202 for a malformed frame so the scanner keeps going.
func (h *Handler) SubmitFrame(w http.ResponseWriter, r *http.Request) {
	var req FrameRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleError(w, r, err)
		return
	}

	sess, err := h.Service.SubmitFrame(r.Context(), chi.URLParam(r, "sessionId"), req.Text)
	if errors.Is(err, internal.ErrMalformedPayload) && sess != nil {
		h.WriteJSON(w, http.StatusAccepted, NewPageView(sess))
		return
	}
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewPageView(sess))
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Close(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
		h.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	png, err := h.Service.QRCode(r.Context(), chi.URLParam(r, "sessionId"), size)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteBinary(w, "image/png", "", png)
}

func (h *Handler) Slip(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	pdf, err := h.Service.Slip(r.Context(), sessionID)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}
	h.WriteBinary(w, "application/pdf", "slip-"+sessionID+".pdf", pdf)
}

func (h *Handler) DocumentTypes(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, DocumentTypesResponse{Types: document.TypeOptions()})
}
