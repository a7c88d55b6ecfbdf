package docapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/document"
	"github.com/frahmantamala/qr-document/internal/scan"
	"github.com/frahmantamala/qr-document/internal/user"
)

const (
	PathGetUser    = "/api/admin/get-user"
	PathGenerateQR = "/api/clerk/generate-qr"
	PathScanQR     = "/api/user/scan-qr"

	OpGetUser    = "get_user"
	OpIssue      = "issue_document"
	OpVerifyScan = "verify_scan"

	maxErrorBody = 64 << 10
)

// Observer receives the latency of every call. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveUpstream(operation string, status int, duration time.Duration)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the document API and translates every response into the
// AppError taxonomy. It never retries.
type Client struct {
	baseURL  string
	http     *http.Client
	observer Observer
	logger   *slog.Logger
}

var (
	_ user.Directory  = (*Client)(nil)
	_ document.Issuer = (*Client)(nil)
	_ scan.Verifier   = (*Client)(nil)
)

func NewClient(config Config, observer Observer, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		observer: observer,
		logger:   logger,
	}
}

func (c *Client) GetUser(ctx context.Context, userID string) (user.Record, error) {
	endpoint := c.baseURL + PathGetUser + "?" + url.Values{"userId": {userID}}.Encode()

	status, body, err := c.do(ctx, OpGetUser, http.MethodGet, endpoint, nil)
	if err != nil {
		return user.Record{}, err
	}

	switch {
	case status == http.StatusOK:
		var rec user.Record
		if err := json.Unmarshal(body, &rec); err != nil {
			return user.Record{}, internal.NewTransportError("failed to decode user response", err)
		}
		return rec, nil
	case status == http.StatusNotFound:
		return user.Record{}, internal.NewNotFoundError(errorMessage(body, "user not found"), internal.ErrCodeUserNotFound)
	default:
		return user.Record{}, unexpectedStatus(OpGetUser, status, body)
	}
}

func (c *Client) IssueDocument(ctx context.Context, s document.Submission) (document.Receipt, error) {
	status, body, err := c.do(ctx, OpIssue, http.MethodPost, c.baseURL+PathGenerateQR, s)
	if err != nil {
		return document.Receipt{}, err
	}

	switch status {
	case http.StatusOK, http.StatusCreated:
		var receipt document.Receipt
		if err := json.Unmarshal(body, &receipt); err != nil {
			return document.Receipt{}, internal.NewTransportError("failed to decode issue-document response", err)
		}
		return receipt, nil
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return document.Receipt{}, internal.NewIssuanceError(errorMessage(body, ""))
	default:
		return document.Receipt{}, unexpectedStatus(OpIssue, status, body)
	}
}

func (c *Client) VerifyScan(ctx context.Context, req scan.VerifyRequest) (scan.Verdict, error) {
	status, body, err := c.do(ctx, OpVerifyScan, http.MethodPost, c.baseURL+PathScanQR, req)
	if err != nil {
		return scan.Verdict{}, err
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		var verdict scan.Verdict
		if err := json.Unmarshal(body, &verdict); err != nil {
			return scan.Verdict{}, internal.NewTransportError("failed to decode verify-scan response", err)
		}
		return verdict, nil
	case status >= 400 && status < 500:
		return scan.Verdict{}, internal.NewVerificationError(errorMessage(body, "scan rejected"), rejectionCode(status), status)
	default:
		return scan.Verdict{}, unexpectedStatus(OpVerifyScan, status, body)
	}
}

func (c *Client) do(ctx context.Context, operation, method, endpoint string, payload interface{}) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, internal.NewInternalError("failed to encode request", err)
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, internal.NewTransportError("failed to create request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe(operation, 0, time.Since(start))
		c.logger.Error("document API request failed", "operation", operation, "error", err)
		return 0, nil, internal.NewTransportError(fmt.Sprintf("%s request failed", operation), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	c.observe(operation, resp.StatusCode, time.Since(start))
	if err != nil {
		return 0, nil, internal.NewTransportError("failed to read response", err)
	}

	c.logger.Debug("document API response", "operation", operation, "status", resp.StatusCode)
	return resp.StatusCode, body, nil
}

func (c *Client) observe(operation string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream(operation, status, d)
	}
}

// errorMessage reads {"error":"..."} or {"error":{"message":"..."}} from body.
func errorMessage(body []byte, fallback string) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fallback
	}

	if len(envelope.Error) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Error, &text); err == nil && text != "" {
			return text
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return fallback
}

func rejectionCode(status int) internal.ErrorCode {
	switch status {
	case http.StatusForbidden:
		return internal.ErrCodeDepartmentDenied
	case http.StatusConflict:
		return internal.ErrCodeAlreadyScanned
	case http.StatusNotFound:
		return internal.ErrCodeDocumentNotFound
	default:
		return internal.ErrCodeScanRejected
	}
}

func unexpectedStatus(operation string, status int, body []byte) *internal.AppError {
	return internal.NewTransportError(
		fmt.Sprintf("%s: document API returned status %d", operation, status),
		errors.New(errorMessage(body, http.StatusText(status))),
	)
}
