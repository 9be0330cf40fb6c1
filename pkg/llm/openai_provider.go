package llm

import (
	"context"
)

// OpenAIProvider answers search prompts with an OpenAI chat model.
type OpenAIProvider struct {
	client *Client
}

// NewOpenAIProvider wraps an OpenAI client as a Provider.
func NewOpenAIProvider(client *Client) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

func (p *OpenAIProvider) Name() string  { return ProviderOpenAI }
func (p *OpenAIProvider) Model() string { return p.client.GetModel() }

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Generation, error) {
	result, err := p.client.GenerateResponse(ctx, req.Prompt, req.System, req.MaxTokens)
	if err != nil {
		return nil, err
	}
	return &Generation{
		Text: result.Content,
		Usage: Usage{
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			TotalTokens:      result.TotalTokens,
		},
		FinishReason: result.FinishReason,
	}, nil
}

var _ Provider = (*OpenAIProvider)(nil)
