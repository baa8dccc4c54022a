// internal/llm/client.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/acmecorp/hrdesk/internal/appconfig"
	"github.com/acmecorp/hrdesk/internal/fault"
	"github.com/acmecorp/hrdesk/internal/logging"
)

const (
	baseRetryDelay = 200 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

// Client calls the hosted chat-completion deployment. Transient failures
// (429, 5xx, transport errors) are retried with exponential backoff,
// honoring Retry-After when the service sends one.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	deployment  string
	apiVersion  string
	apiKey      string
	maxRetries  int
	temperature float64
	maxTokens   int
	topP        float64
}

// New builds a chat client from the Azure and generation sections of the config.
func New(cfg appconfig.Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Azure.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("azure.endpoint is required for chat completions")
	}
	if strings.TrimSpace(cfg.Azure.ChatDeployment) == "" {
		return nil, errors.New("azure.chat_deployment is required for chat completions")
	}
	if strings.TrimSpace(cfg.Azure.APIKey) == "" {
		return nil, errors.New("azure api key is not set (HRDESK_AZURE_API_KEY)")
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout()},
		endpoint:    endpoint,
		deployment:  cfg.Azure.ChatDeployment,
		apiVersion:  cfg.Azure.APIVersion,
		apiKey:      cfg.Azure.APIKey,
		maxRetries:  cfg.Client.MaxRetries,
		temperature: cfg.Generation.Temperature,
		maxTokens:   cfg.Generation.MaxTokens,
		topP:        cfg.Generation.TopP,
	}, nil
}

// Complete sends the messages and returns the assistant's reply text.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fault.Errorf(fault.KindValidation, "chat request has no messages")
	}

	body, err := json.Marshal(chatRequest{
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		TopP:        c.topP,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	logging.LogRequest("send", c.endpoint, c.deployment, "chat",
		fmt.Sprintf(`{"messages":%d}`, len(messages)))

	raw, err := c.post(ctx, body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fault.Wrap(fault.KindUpstream, fmt.Errorf("parse chat response: %w", err))
	}
	if parsed.Error != nil {
		return "", fault.Errorf(fault.KindUpstream, "chat deployment returned error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fault.Errorf(fault.KindUpstream, "chat response contained no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fault.Errorf(fault.KindUpstream, "chat response contained empty content (finish_reason=%s)",
			parsed.Choices[0].FinishReason)
	}

	logging.LogRequest("recv", c.endpoint, c.deployment, "chat",
		fmt.Sprintf(`{"finish_reason":%q,"prompt_tokens":%d,"completion_tokens":%d}`,
			parsed.Choices[0].FinishReason, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens))

	return content, nil
}

// post sends the request, retrying transient failures.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)

	var lastErr error
	delay := baseRetryDelay
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fault.Wrap(fault.KindUpstream, ctx.Err())
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fault.Wrap(fault.KindUpstream, fmt.Errorf("create chat request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fault.Wrap(fault.KindUpstream, ctx.Err())
			}
			lastErr = fmt.Errorf("chat request failed: %w", err)
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			if readErr != nil {
				return nil, fault.Wrap(fault.KindUpstream, fmt.Errorf("read chat response: %w", readErr))
			}
			return raw, nil
		}

		lastErr = fmt.Errorf("chat request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
		if !retryableStatus(resp.StatusCode) {
			return nil, fault.Wrap(fault.KindUpstream, lastErr)
		}
		if wait := retryAfter(resp); wait > 0 {
			delay = wait
		}
	}

	return nil, fault.Wrap(fault.KindUpstream, fmt.Errorf("chat request exhausted retries: %w", lastErr))
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
