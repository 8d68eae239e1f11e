package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/scry-forge/internal/provider"
	"google.golang.org/genai"
)

// ProviderID is the routing name of this provider.
const ProviderID = "gemini"

// contentGenerator is the subset of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Client implements provider.Client using the Gemini API.
type Client struct {
	models contentGenerator
	retry  provider.RetryPolicy
	logger *slog.Logger
}

// New creates a Client authenticated with apiKey.
func New(ctx context.Context, logger *slog.Logger, apiKey string, retry provider.RetryPolicy) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", provider.ErrInvalidRequest)
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newClient(gc.Models, logger, retry), nil
}

func newClient(models contentGenerator, logger *slog.Logger, retry provider.RetryPolicy) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		models: models,
		retry:  retry,
		logger: logger.With("component", "gemini_client"),
	}
}

// Name implements provider.Client.
func (c *Client) Name() string { return ProviderID }

// Generate implements provider.Client.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts provider.Options) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	temp := float32(opts.Temperature)
	cfg.Temperature = &temp
	if opts.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	var text string
	err := c.retry.Do(ctx, c.logger, func(ctx context.Context) error {
		resp, err := c.models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
		if err != nil {
			return classify(ctx, err)
		}
		text, err = responseText(resp)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked: %s", provider.ErrContentBlocked, resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: no candidates", provider.ErrEmptyResponse)
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: response stopped by safety filters", provider.ErrContentBlocked)
	}
	if cand.Content == nil {
		return "", fmt.Errorf("%w: candidate has no content", provider.ErrEmptyResponse)
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("%w: candidate has no text", provider.ErrEmptyResponse)
	}
	return b.String(), nil
}

// classify maps an SDK error onto a provider error class.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.Code, apiErr.Status, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError(apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message)
	}
	return fmt.Errorf("%w: %v", provider.ErrTransient, err)
}

func statusError(code int, status, msg string) error {
	quota := status == "RESOURCE_EXHAUSTED" && strings.Contains(strings.ToLower(msg), "quota")
	if code == 400 && strings.Contains(strings.ToLower(msg), "safety") {
		return fmt.Errorf("%w: %s", provider.ErrContentBlocked, msg)
	}
	return provider.StatusError(code, quota, msg)
}
