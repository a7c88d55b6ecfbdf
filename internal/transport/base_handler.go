package transport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/pkg/logger"
)

const maxBodyBytes = 1 << 20

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response in the AppError shape
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.Logger.Error("http error", "status", status, "message", message)
	h.WriteJSON(w, status, internal.Response{Error: &internal.AppError{
		Type:    internal.ErrorTypeInternal,
		Code:    internal.ErrCodeInternal,
		Message: message,
	}})
}

// HandleError maps err onto its HTTP status. Errors outside the AppError
// taxonomy are reported as internal errors without leaking their text.
func (h *BaseHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := internal.AsAppError(err)
	if !ok {
		h.Logger.Error("unhandled error", "path", r.URL.Path, "error", err)
		appErr = internal.NewInternalError("internal server error", err)
	}

	status, body := appErr.ToHTTPResponse()
	if status == 0 {
		status = http.StatusInternalServerError
	}

	lg := h.Logger
	if status >= http.StatusInternalServerError {
		lg.Error("request failed", "path", r.URL.Path, "status", status, "code", appErr.Code, "error", appErr)
	} else {
		lg.Warn("request rejected", "path", r.URL.Path, "status", status, "code", appErr.Code, "message", appErr.Message)
	}

	h.WriteJSON(w, status, body)
}

// DecodeJSON reads a JSON request body into v.
func (h *BaseHandler) DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return internal.NewValidationError("request body is required", internal.ErrCodeValidationFailed)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return internal.NewValidationError("request body is required", internal.ErrCodeValidationFailed)
		}
		return internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed).WithCause(err)
	}
	return nil
}

// WriteBinary writes raw bytes such as images or documents.
func (h *BaseHandler) WriteBinary(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	if filename != "" {
		w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.Logger.Error("failed to write response body", "error", err)
	}
}
