package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/logging"
)

// Client is a thin wrapper around the OpenAI chat completions API.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// Config holds configuration for creating an OpenAI client.
type Config struct {
	APIKey    string
	Model     string // e.g. "gpt-4o"
	MaxTokens int
	BaseURL   string // optional, defaults to the public API
}

// GenerateResponseResult contains a completion and its token usage.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	FinishReason     string
}

// NewClient creates a new OpenAI client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &Client{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.Named("openai"),
	}, nil
}

// GenerateResponse generates a chat completion. maxTokens <= 0 uses the client default.
func (c *Client) GenerateResponse(ctx context.Context, prompt, systemMessage string, maxTokens int) (*GenerateResponseResult, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  buildMessages(systemMessage, prompt),
		MaxTokens: c.tokens(maxTokens),
	}
	return c.complete(ctx, req)
}

// GenerateObject requests JSON conforming to the schema derived from req.Schema
// and unmarshals it into out.
func (c *Client) GenerateObject(ctx context.Context, req ObjectRequest, out any) error {
	schema, err := jsonschema.GenerateSchemaForType(req.Schema)
	if err != nil {
		return fmt.Errorf("generate schema %s: %w", req.Name, err)
	}

	result, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  buildMessages(req.System, req.Prompt),
		MaxTokens: c.tokens(req.MaxTokens),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        req.Name,
				Description: req.Description,
				Schema:      schema,
			},
		},
	})
	if err != nil {
		return err
	}

	return decodeStructured(result.Content, out, ProviderOpenAI, c.model)
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (*GenerateResponseResult, error) {
	c.logger.Debug("OpenAI request",
		zap.String("model", req.Model),
		zap.Int("max_tokens", req.MaxTokens),
		zap.Bool("structured", req.ResponseFormat != nil))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("OpenAI request failed",
			zap.Duration("elapsed", time.Since(start)),
			logging.SafeError(err))
		classified := ClassifyError(err)
		classified.Provider = ProviderOpenAI
		classified.Model = c.model
		return nil, classified
	}

	if len(resp.Choices) == 0 {
		return nil, NewErrorWithContext(ErrorTypeResponse, "no choices in response", false, nil, ProviderOpenAI, c.model, 0)
	}

	c.logger.Debug("OpenAI request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		FinishReason:     string(resp.Choices[0].FinishReason),
	}, nil
}

func (c *Client) tokens(maxTokens int) int {
	if maxTokens > 0 {
		return maxTokens
	}
	return c.maxTokens
}

func buildMessages(systemMessage, prompt string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemMessage != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemMessage})
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.model
}

var _ ObjectGenerator = (*Client)(nil)
