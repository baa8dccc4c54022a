// internal/embedding/client.go
// Package embedding converts text to fixed-length vectors via a hosted
// Azure OpenAI embeddings deployment.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
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

// Embedder is the port the document processor and query service depend on.
type Embedder interface {
	// EmbedText embeds a single span of text.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds several spans in one call, preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Client calls the hosted embeddings deployment. Transient failures (429,
// 5xx, transport errors) are retried with exponential backoff, honoring
// Retry-After when the service sends one.
type Client struct {
	httpClient *http.Client
	endpoint   string
	deployment string
	apiVersion string
	apiKey     string
	maxRetries int
}

// New builds an embeddings client from the Azure section of the config.
func New(cfg appconfig.Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Azure.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("azure.endpoint is required for embeddings")
	}
	if strings.TrimSpace(cfg.Azure.EmbeddingDeployment) == "" {
		return nil, errors.New("azure.embedding_deployment is required for embeddings")
	}
	if strings.TrimSpace(cfg.Azure.APIKey) == "" {
		return nil, errors.New("azure api key is not set (HRDESK_AZURE_API_KEY)")
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
		endpoint:   endpoint,
		deployment: cfg.Azure.EmbeddingDeployment,
		apiVersion: cfg.Azure.APIVersion,
		apiKey:     cfg.Azure.APIKey,
		maxRetries: cfg.Client.MaxRetries,
	}, nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedText embeds a single span of text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds several spans in one call, preserving input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fault.Errorf(fault.KindValidation, "embedding input %d is empty", i)
		}
	}

	body, err := json.Marshal(embeddingRequest{Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	logging.LogRequest("send", c.endpoint, c.deployment, "embeddings",
		fmt.Sprintf(`{"inputs":%d}`, len(texts)))

	raw, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fault.Wrap(fault.KindUpstream, fmt.Errorf("parse embedding response: %w", err))
	}
	if len(parsed.Data) != len(texts) {
		return nil, fault.Errorf(fault.KindUpstream,
			"embedding response returned %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	vectors := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		if len(item.Embedding) == 0 {
			return nil, fault.Errorf(fault.KindUpstream, "embedding response returned empty vector at %d", i)
		}
		vectors[i] = item.Embedding
	}

	logging.LogRequest("recv", c.endpoint, c.deployment, "embeddings",
		fmt.Sprintf(`{"vectors":%d,"dimension":%d}`, len(vectors), len(vectors[0])))

	return vectors, nil
}

// post sends the request, retrying transient failures.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s",
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
			return nil, fault.Wrap(fault.KindUpstream, fmt.Errorf("create embedding request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fault.Wrap(fault.KindUpstream, ctx.Err())
			}
			lastErr = fmt.Errorf("embedding request failed: %w", err)
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			if readErr != nil {
				return nil, fault.Wrap(fault.KindUpstream, fmt.Errorf("read embedding response: %w", readErr))
			}
			return raw, nil
		}

		lastErr = fmt.Errorf("embedding request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
		if !retryableStatus(resp.StatusCode) {
			return nil, fault.Wrap(fault.KindUpstream, lastErr)
		}
		if wait := retryAfter(resp); wait > 0 {
			delay = wait
		}
	}

	return nil, fault.Wrap(fault.KindUpstream, fmt.Errorf("embedding request exhausted retries: %w", lastErr))
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
