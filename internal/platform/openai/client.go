// Package openai implements provider.Client for OpenAI-compatible chat
// completion endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/scry-forge/internal/provider"
)

// ProviderID is the routing name of this provider.
const ProviderID = "openai"

// DefaultHTTPTimeout bounds a single HTTP round trip. The invoker applies
// its own, usually shorter, deadline through the context.
const DefaultHTTPTimeout = 5 * time.Minute

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Retry   provider.RetryPolicy
}

// Client handles requests to an OpenAI-compatible endpoint.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
}

// New creates a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", provider.ErrInvalidRequest)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger.With("component", "openai_client"),
	}, nil
}

// Name implements provider.Client.
func (c *Client) Name() string { return ProviderID }

// Generate implements provider.Client.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts provider.Options) (string, error) {
	req := chatCompletionRequest{
		Model:       model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		N:           1,
	}
	if opts.JSON {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var text string
	err := c.config.Retry.Do(ctx, c.logger, func(ctx context.Context) error {
		resp, err := c.doRequest(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: no choices", provider.ErrEmptyResponse)
		}
		ch := resp.Choices[0]
		if ch.FinishReason == "content_filter" {
			return fmt.Errorf("%w: finish reason content_filter", provider.ErrContentBlocked)
		}
		if strings.TrimSpace(ch.Message.Content) == "" {
			return fmt.Errorf("%w: empty message", provider.ErrEmptyResponse)
		}
		text = ch.Message.Content
		c.logger.DebugContext(ctx, "chat completion finished",
			"model", model,
			"finish_reason", ch.FinishReason,
			"total_tokens", resp.Usage.TotalTokens)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) doRequest(ctx context.Context, req chatCompletionRequest) (*chatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", provider.ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: request failed: %v", provider.ErrTransient, err)
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", provider.ErrTransient, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var errResp errorResponse
		msg := string(respBody)
		quota := false
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
			quota = errResp.Error.Code == "insufficient_quota" || errResp.Error.Type == "insufficient_quota"
		}
		return nil, provider.StatusError(httpResp.StatusCode, quota, msg)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", provider.ErrEmptyResponse, err)
	}
	return &resp, nil
}
