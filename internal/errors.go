package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound           ErrorType = "NOT_FOUND"
	ErrorTypeIdentityUnresolved ErrorType = "IDENTITY_UNRESOLVED"
	ErrorTypeIssuance           ErrorType = "ISSUANCE_ERROR"
	ErrorTypeVerification       ErrorType = "VERIFICATION_ERROR"
	ErrorTypeTransport          ErrorType = "TRANSPORT_ERROR"
	ErrorTypeConflict           ErrorType = "CONFLICT"
	ErrorTypeInternal           ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidTitle     ErrorCode = "INVALID_TITLE"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeAmountTooLow     ErrorCode = "AMOUNT_TOO_LOW"
	ErrCodeInvalidType      ErrorCode = "INVALID_DOCUMENT_TYPE"

	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeIdentityUnresolved ErrorCode = "IDENTITY_UNRESOLVED"
	ErrCodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionExists      ErrorCode = "SESSION_EXISTS"
	ErrCodeWrongSessionKind   ErrorCode = "WRONG_SESSION_KIND"
	ErrCodeDocumentNotFound   ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrCodeNoArtifact         ErrorCode = "NO_ARTIFACT"

	ErrCodeIssuanceRejected   ErrorCode = "ISSUANCE_REJECTED"
	ErrCodeSubmissionInFlight ErrorCode = "SUBMISSION_IN_FLIGHT"

	ErrCodeMalformedPayload ErrorCode = "MALFORMED_PAYLOAD"
	ErrCodeScanRejected     ErrorCode = "SCAN_REJECTED"
	ErrCodeScanInactive     ErrorCode = "SCAN_INACTIVE"
	ErrCodeFrameThrottled   ErrorCode = "FRAME_THROTTLED"
	ErrCodeDepartmentDenied ErrorCode = "DEPARTMENT_MISMATCH"
	ErrCodeAlreadyScanned   ErrorCode = "ALREADY_SCANNED"

	ErrCodeTransport ErrorCode = "TRANSPORT_FAILED"
	ErrCodeInternal  ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Type and Code so sentinel values compare equal to fresh instances.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// FieldErrors returns the field-scoped validation errors carried in Details.
func (e *AppError) FieldErrors() []ValidationError {
	if v, ok := e.Details.(ValidationErrors); ok {
		return v.Errors
	}
	return nil
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewIdentityUnresolvedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeIdentityUnresolved,
		Code:       ErrCodeIdentityUnresolved,
		Message:    message,
		StatusCode: http.StatusPreconditionFailed,
	}
}

// NewIssuanceError wraps a server-side rejection of an issue-document call.
// The reason is passed through verbatim when the server supplied one.
func NewIssuanceError(reason string) *AppError {
	if reason == "" {
		reason = "document could not be issued"
	}
	return &AppError{
		Type:       ErrorTypeIssuance,
		Code:       ErrCodeIssuanceRejected,
		Message:    reason,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func NewVerificationError(message string, code ErrorCode, status int) *AppError {
	return &AppError{
		Type:       ErrorTypeVerification,
		Code:       code,
		Message:    message,
		StatusCode: status,
	}
}

func NewTransportError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTransport,
		Code:       ErrCodeTransport,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeVerification,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

var (
	ErrIdentityUnresolved = NewIdentityUnresolvedError("user identity has not been resolved")
	ErrSessionNotFound    = NewNotFoundError("session not found", ErrCodeSessionNotFound)
	ErrSubmissionInFlight = NewConflictError("a submission is already in progress", ErrCodeSubmissionInFlight)
	ErrNoArtifact         = NewNotFoundError("no document has been issued in this session", ErrCodeNoArtifact)

	ErrMalformedPayload = NewVerificationError("scanned code is not a document payload", ErrCodeMalformedPayload, http.StatusUnprocessableEntity)
	ErrScanInactive     = NewVerificationError("scanning has not been started", ErrCodeScanInactive, http.StatusConflict)
	ErrFrameThrottled   = NewVerificationError("frame dropped by scan throttle", ErrCodeFrameThrottled, http.StatusTooManyRequests)
)

// AsAppError unwraps err into an *AppError anywhere in its chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == t
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

// UnmarshalJSON restores an AppError from its wire shape; StatusCode and Cause are not transmitted.
func (e *AppError) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type    ErrorType        `json:"type"`
		Code    ErrorCode        `json:"code"`
		Message string           `json:"message"`
		Details *ValidationErrors `json:"details,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	e.Type = wire.Type
	e.Code = wire.Code
	e.Message = wire.Message
	if wire.Details != nil && len(wire.Details.Errors) > 0 {
		e.Details = *wire.Details
	}
	e.StatusCode = statusFor(e.Type, e.Code)
	return nil
}

func statusFor(t ErrorType, code ErrorCode) int {
	switch t {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeIdentityUnresolved:
		return http.StatusPreconditionFailed
	case ErrorTypeIssuance:
		return http.StatusUnprocessableEntity
	case ErrorTypeTransport:
		return http.StatusBadGateway
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeVerification:
		switch code {
		case ErrCodeScanInactive, ErrCodeAlreadyScanned:
			return http.StatusConflict
		case ErrCodeFrameThrottled:
			return http.StatusTooManyRequests
		case ErrCodeDepartmentDenied:
			return http.StatusForbidden
		case ErrCodeDocumentNotFound:
			return http.StatusNotFound
		default:
			return http.StatusUnprocessableEntity
		}
	default:
		return http.StatusInternalServerError
	}
}
