// Package inference is the HTTP client for the remote inference service that
// classifies intents and turns requests plus evidence into commands.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 120 * time.Second

	maxErrorBody = 4096
)

// IntentRequest is the body of POST /get_intent.
type IntentRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// IntentResponse classifies a message into the tools it needs.
type IntentResponse struct {
	SessionID      string   `json:"session_id,omitempty"`
	RequiredTools  []string `json:"required_tools"`
	ImmediateReply *string  `json:"immediate_reply"`
}

// Reply returns the immediate reply text, empty when absent.
func (r *IntentResponse) Reply() string {
	if r.ImmediateReply == nil {
		return ""
	}
	return *r.ImmediateReply
}

// ProcessRequest is the body of POST /process_request.
type ProcessRequest struct {
	SessionID           string            `json:"session_id"`
	Message             string            `json:"message"`
	AudioFilePath       string            `json:"audio_file_path,omitempty"`
	ImageTransitionPath [][]string        `json:"image_transition_path,omitempty"`
	ContextErrors       map[string]string `json:"context_errors,omitempty"`
}

// ProcessResponse carries the reply text and the commands to apply.
type ProcessResponse struct {
	SessionID    string          `json:"session_id,omitempty"`
	ResponseText string          `json:"response_text"`
	Commands     json.RawMessage `json:"commands"`
}

// Client talks to the inference service.
type Client interface {
	GetIntent(ctx context.Context, req IntentRequest) (*IntentResponse, error)
	ProcessRequest(ctx context.Context, req ProcessRequest) (*ProcessResponse, error)
}

// TransportError is a failed call: a non-2xx status or a network error.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true for server errors (5xx) and network errors.
// Nothing retries automatically; this only shapes the message shown.
func (e *TransportError) IsRetryable() bool {
	return e.Err != nil || e.StatusCode >= 500
}

// Hint is a short user-facing suggestion for the failure.
func (e *TransportError) Hint() string {
	if e.IsRetryable() {
		return "Check that the inference service is running and reachable."
	}
	return "The inference service rejected the request."
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// HTTPClient implements Client over JSON HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a client for baseURL with the given request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// BaseURL returns the service address.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) GetIntent(ctx context.Context, req IntentRequest) (*IntentResponse, error) {
	var out IntentResponse
	if err := c.post(ctx, "/get_intent", req, &out); err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "intent resolved", "tools", out.RequiredTools, "immediate_reply", out.ImmediateReply != nil)
	return &out, nil
}

func (c *HTTPClient) ProcessRequest(ctx context.Context, req ProcessRequest) (*ProcessResponse, error) {
	var out ProcessResponse
	if err := c.post(ctx, "/process_request", req, &out); err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "request processed", "response_bytes", len(out.ResponseText), "commands_bytes", len(out.Commands))
	return &out, nil
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", endpoint, err)
	}

	url := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	c.logger.DebugContext(ctx, "calling inference service", "url", url, "request_id", requestID, "body_bytes", len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
