// Package backend is the typed client for the external account and subscription service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
)

const (
	pathDemoSignup      = "/auth/demo-signup"
	pathTemporalProfile = "/users/temporal-profile"
	pathTrial           = "/subscriptions/trial"
	pathRegisterEmail   = "/auth/register-email"

	maxErrorBody = 64 << 10
)

// RequestError is the uniform failure of every call: non-2xx responses,
// network failures and malformed bodies.
type RequestError struct {
	Status  int    // 0 for network-level failures
	Code    string // structured error code when the service supplies one
	Message string
	Err     error
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error { return e.Err }

// ErrorCode exposes the structured code, if any.
func (e *RequestError) ErrorCode() string { return e.Code }

// TemporalProfile bridges a pre-login language selection to an account.
type TemporalProfile struct {
	NativeLanguageID string `json:"nativeLanguageId"`
	TargetLanguageID string `json:"targetLanguageId"`
	LanguageLevel    string `json:"languageLevel"`
}

// SubscriptionResult is the trial subscription the service created.
type SubscriptionResult struct {
	ID        string    `json:"id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Plan      string    `json:"plan,omitempty"`
	TrialEnds time.Time `json:"trialEnd,omitempty"`
}

// RegisterEmailRequest triggers the registration email.
type RegisterEmailRequest struct {
	Email string `json:"email"`
}

// DemoSignupRequest creates a demo account for a language pair.
type DemoSignupRequest struct {
	NativeLanguage string `json:"nativeLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Level          string `json:"level"`
}

// DemoSignupResult is the demo-signup response body.
type DemoSignupResult struct {
	Success     bool            `json:"success"`
	User        json.RawMessage `json:"user,omitempty"`
	RedirectURL string          `json:"redirectUrl"`
	Error       string          `json:"error,omitempty"`
}

// API is the contract the application layer depends on.
type API interface {
	DemoSignup(ctx context.Context, req DemoSignupRequest) (*DemoSignupResult, error)
	CreateTemporalProfile(ctx context.Context, profile TemporalProfile, token string) error
	CreateTrialSubscription(ctx context.Context, token string) (*SubscriptionResult, error)
	TriggerRegisterEmail(ctx context.Context, req RegisterEmailRequest, token string) error
}

// Client talks JSON to a fixed base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.ChanneledLogger
}

// NewClient creates a client; a nil httpClient gets one with the given timeout.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration, logger *logging.ChanneledLogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

var _ API = (*Client)(nil)

func (c *Client) DemoSignup(ctx context.Context, req DemoSignupRequest) (*DemoSignupResult, error) {
	var result DemoSignupResult
	if err := c.do(ctx, pathDemoSignup, req, "", &result); err != nil {
		return nil, err
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "Demo signup failed"
		}
		return nil, &RequestError{Status: http.StatusOK, Message: msg}
	}
	return &result, nil
}

func (c *Client) CreateTemporalProfile(ctx context.Context, profile TemporalProfile, token string) error {
	return c.do(ctx, pathTemporalProfile, profile, token, nil)
}

func (c *Client) CreateTrialSubscription(ctx context.Context, token string) (*SubscriptionResult, error) {
	var result SubscriptionResult
	if err := c.do(ctx, pathTrial, struct{}{}, token, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) TriggerRegisterEmail(ctx context.Context, req RegisterEmailRequest, token string) error {
	return c.do(ctx, pathRegisterEmail, req, token, nil)
}

func (c *Client) do(ctx context.Context, path string, body any, token string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &RequestError{Message: fmt.Sprintf("encode request: %v", err), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &RequestError{Message: fmt.Sprintf("build request: %v", err), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		c.logger.Backend().Warn("Backend request failed", "path", path, "error", err, "token", logging.MaskToken(token))
		return &RequestError{Message: fmt.Sprintf("Network error: %v", err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &RequestError{Status: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err), Err: err}
	}

	c.logger.Backend().Debug("Backend request completed",
		"path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromBody(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RequestError{Status: resp.StatusCode, Message: "Invalid JSON response from server", Err: err}
	}
	return nil
}

func errorFromBody(status int, raw []byte) *RequestError {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Code    string          `json:"code"`
	}
	rerr := &RequestError{Status: status, Message: fmt.Sprintf("HTTP error! status: %d", status)}
	if err := json.Unmarshal(raw, &body); err != nil {
		return rerr
	}
	rerr.Code = body.Code

	// error is usually a string but some endpoints send {"message": ...}
	var text string
	if json.Unmarshal(body.Error, &text) == nil && text != "" {
		rerr.Message = text
		return rerr
	}
	var nested struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
		rerr.Message = nested.Message
		if nested.Code != "" {
			rerr.Code = nested.Code
		}
	}
	return rerr
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var rerr *RequestError
	if errors.As(err, &rerr) {
		return rerr.Status
	}
	return 0
}
