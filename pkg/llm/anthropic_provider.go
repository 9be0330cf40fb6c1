package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/logging"
)

// AnthropicConfig holds configuration for the Claude provider.
type AnthropicConfig struct {
	APIKey    string
	Model     string // e.g. "claude-3-5-sonnet-20241022"
	MaxTokens int
	BaseURL   string
}

// AnthropicProvider answers search prompts with Claude.
type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewAnthropicProvider creates a Claude provider.
func NewAnthropicProvider(cfg *AnthropicConfig, logger *zap.Logger) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}

	return &AnthropicProvider{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.Named("anthropic"),
	}, nil
}

func (p *AnthropicProvider) Name() string  { return ProviderClaude }
func (p *AnthropicProvider) Model() string { return p.model }

func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Generation, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	prompt := req.Prompt
	start := time.Now()
	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		System:    req.System,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		p.logger.Error("Claude request failed",
			zap.Duration("elapsed", time.Since(start)),
			logging.SafeError(err))
		classified := ClassifyError(err)
		classified.Provider = ProviderClaude
		classified.Model = p.model
		return nil, classified
	}

	text := extractAnthropicText(resp)
	if text == "" {
		return nil, NewErrorWithContext(ErrorTypeResponse, "no text content in response", false, nil, ProviderClaude, p.model, 0)
	}

	return &Generation{
		Text: text,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		FinishReason: string(resp.StopReason),
	}, nil
}

// extractAnthropicText joins every text block of the response.
func extractAnthropicText(resp anthropic.MessagesResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}
	return sb.String()
}

var _ Provider = (*AnthropicProvider)(nil)
