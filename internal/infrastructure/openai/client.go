// Package openai provides a domain.TextGenerator backed by the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/FreePeak/smart-slides/internal/domain"
	"github.com/FreePeak/smart-slides/internal/infrastructure/logging"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = goopenai.GPT4o
	// DefaultTemperature is used when no temperature is configured.
	DefaultTemperature = 0.7
)

// Config contains configuration for the Client.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	// BaseURL overrides the API endpoint, e.g. for a proxy or a test server.
	BaseURL string
	// Timeout bounds a whole completion request. Zero means no limit beyond ctx.
	Timeout time.Duration
	Logger  *logging.Logger
}

// Client implements domain.TextGenerator.
type Client struct {
	api         *goopenai.Client
	apiKey      string
	model       string
	temperature float32
	logger      *logging.Logger
}

var _ domain.TextGenerator = (*Client)(nil)

// NewClient creates a Client. A missing API key is not an error here; it is
// reported by Complete before any request is made.
func NewClient(config Config) *Client {
	clientConfig := goopenai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Client{
		api:         goopenai.NewClientWithConfig(clientConfig),
		apiKey:      config.APIKey,
		model:       model,
		temperature: temperature,
		logger:      logger.Named("openai"),
	}
}

// Complete sends one chat completion request asking for a JSON object and
// returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", domain.ErrMissingCredential
	}

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: c.temperature,
	})
	if err != nil {
		genErr := classify(err)
		c.logger.Debug("Chat completion failed", logging.Fields{
			"model": c.model,
			"kind":  string(genErr.Kind),
			"error": err.Error(),
		})
		return "", genErr
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewGenerationError(domain.KindEmptyResponse, "Model returned no choices", nil)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", domain.NewGenerationError(domain.KindEmptyResponse, "Model returned an empty message", nil)
	}

	c.logger.Debug("Chat completion succeeded", logging.Fields{
		"model":             c.model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	})
	return content, nil
}

// classify maps a client error onto a generation error kind.
func classify(err error) *domain.GenerationError {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fromStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return fromStatus(reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode), err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewGenerationError(domain.KindTimeout, "Request to OpenAI timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewGenerationError(domain.KindTimeout, "Request to OpenAI timed out", err)
	}

	return domain.NewGenerationError(domain.KindConnection, "Could not reach OpenAI", err)
}

func fromStatus(status int, message string, cause error) *domain.GenerationError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewGenerationError(domain.KindAuthentication, "OpenAI rejected the API key", cause)
	case status == http.StatusTooManyRequests:
		return domain.NewGenerationError(domain.KindRateLimit, "OpenAI rate limit exceeded", cause)
	default:
		return domain.NewGenerationError(domain.KindUpstream, fmt.Sprintf("OpenAI API error (status %d): %s", status, message), cause)
	}
}
