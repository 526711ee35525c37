// Package backend is the HTTP client for the conversation backend:
// posting a submission to the stream endpoint and handing the raw
// response body to internal/stream for decoding.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spoq-dev/spoq/internal/authstub"
	"github.com/spoq-dev/spoq/internal/stream"
)

// APIError represents a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend api error: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the conversation backend's stream endpoint.
// Satisfies internal/owner's Transport interface.
type Client struct {
	baseURL     string
	tokenSource authstub.TokenSource
	httpClient  *http.Client
}

// NewClient constructs a Client backed by a static API key. The stream
// endpoint has no overall request timeout (a turn may legitimately run
// for minutes); callers bound it via ctx instead.
func NewClient(baseURL, apiKey string) *Client {
	return NewClientWithTokenSource(baseURL, authstub.StaticToken(apiKey))
}

// NewClientWithTokenSource constructs a Client that resolves its bearer
// token from src on every request, so a future device-authorization
// login flow can supply refreshed tokens without callers changing.
func NewClientWithTokenSource(baseURL string, src authstub.TokenSource) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		tokenSource: src,
		httpClient:  &http.Client{},
	}
}

func (c *Client) authHeader(ctx context.Context) (string, error) {
	if c.tokenSource == nil {
		return "", nil
	}
	token, err := c.tokenSource.Token(ctx)
	if err != nil || token == "" {
		return "", err
	}
	return "Bearer " + token, nil
}

// Stream posts req to {baseURL}/stream and returns the response body
// for the caller to read newline-delimited events from. The caller
// owns closing the body.
func (c *Client) Stream(ctx context.Context, req stream.Request) (io.ReadCloser, error) {
	payload, err := req.Body()
	if err != nil {
		return nil, fmt.Errorf("marshal stream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stream", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if auth, err := c.authHeader(ctx); err != nil {
		return nil, fmt.Errorf("resolve auth token: %w", err)
	} else if auth != "" {
		httpReq.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send stream request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return resp.Body, nil
}

// Timeout overrides the client's per-request timeout. Zero disables
// it, matching the long-lived stream use case.
func (c *Client) Timeout(d time.Duration) {
	c.httpClient.Timeout = d
}

// permissionDecision is the wire body for Notify.
type permissionDecision struct {
	ThreadID string `json:"thread_id"`
	Approved bool   `json:"approved"`
}

// Notify reports a permission decision back to the backend. Satisfies
// internal/owner's PermissionNotifier interface.
func (c *Client) Notify(ctx context.Context, threadID, permissionID string, approved bool) error {
	payload, err := json.Marshal(permissionDecision{ThreadID: threadID, Approved: approved})
	if err != nil {
		return fmt.Errorf("marshal permission decision: %w", err)
	}

	url := fmt.Sprintf("%s/permissions/%s", c.baseURL, permissionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create permission decision request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if auth, err := c.authHeader(ctx); err != nil {
		return fmt.Errorf("resolve auth token: %w", err)
	} else if auth != "" {
		httpReq.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send permission decision: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}
