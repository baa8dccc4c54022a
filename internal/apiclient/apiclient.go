// internal/apiclient/apiclient.go
// Package apiclient is the HTTP client for a running hrdesk server. The
// chat TUI and the one-shot query command both talk to the API through it.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/acmecorp/hrdesk/internal/fault"
	"github.com/acmecorp/hrdesk/internal/history"
)

// Client calls the hrdesk HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a client for the server at baseURL. The timeout bounds each
// individual request.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AskResult is the answer to one chat question.
type AskResult struct {
	SessionID         string   `json:"session_id"`
	Answer            string   `json:"bot_message"`
	GroundingChunkIDs []string `json:"grounding_chunk_ids"`
}

// Health reports server readiness and coarse corpus counts.
type Health struct {
	OK       bool   `json:"ok"`
	Store    string `json:"store"`
	Chunks   int64  `json:"chunks"`
	Sessions int    `json:"sessions"`
}

type askRequest struct {
	SessionID   string `json:"session_id,omitempty"`
	UserMessage string `json:"user_message"`
}

type sessionEnvelope struct {
	SessionID string         `json:"session_id"`
	Turns     []history.Turn `json:"turns"`
}

type errEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Ask sends a question, optionally continuing an existing session, and
// returns the grounded answer.
func (c *Client) Ask(ctx context.Context, sessionID, question string) (AskResult, error) {
	payload, err := json.Marshal(askRequest{SessionID: sessionID, UserMessage: question})
	if err != nil {
		return AskResult{}, fmt.Errorf("encoding chat request: %w", err)
	}

	var result AskResult
	if err := c.do(ctx, http.MethodPost, "/chats", payload, &result); err != nil {
		return AskResult{}, err
	}
	return result, nil
}

// History fetches the persisted turns for a session.
func (c *Client) History(ctx context.Context, sessionID string) ([]history.Turn, error) {
	var envelope sessionEnvelope
	if err := c.do(ctx, http.MethodGet, "/chats/"+sessionID, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Turns, nil
}

// EndSession deletes a session's history on the server.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/chats/"+sessionID, nil, nil)
}

// CheckHealth pings the server and returns its readiness report.
func (c *Client) CheckHealth(ctx context.Context) (Health, error) {
	var health Health
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &health); err != nil {
		return Health{}, err
	}
	return health, nil
}

// do executes one API call and decodes the response into out when it is
// non-nil. Non-2xx responses are turned into classified errors carrying
// the server's message.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fault.Errorf(fault.KindUpstream, "hrdesk server unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// apiError rebuilds a classified error from the server's error envelope so
// callers can branch on the same kinds the server mapped from.
func apiError(status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var envelope errEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		message = envelope.Error
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return fault.Errorf(kindForStatus(status), "%s", message)
}

func kindForStatus(status int) fault.Kind {
	switch status {
	case http.StatusBadRequest:
		return fault.KindValidation
	case http.StatusNotFound:
		return fault.KindNotFound
	case http.StatusBadGateway:
		return fault.KindUpstream
	case http.StatusServiceUnavailable:
		return fault.KindStorage
	default:
		return fault.KindUnknown
	}
}
