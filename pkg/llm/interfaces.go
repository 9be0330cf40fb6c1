// Package llm wraps the LLM providers Lookout queries: OpenAI, Google Gemini
// and Anthropic Claude, plus structured-output helpers built on them.
package llm

import (
	"context"

	"github.com/lookout-hq/lookout/pkg/models"
)

// Provider identifiers. These are persisted as ModelResult.Model.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
	ProviderClaude = "claude"
)

// AllProviders lists every provider in dispatch order.
var AllProviders = []string{ProviderOpenAI, ProviderGoogle, ProviderClaude}

// Request is a single text generation request.
type Request struct {
	Prompt    string
	System    string
	MaxTokens int
}

// Usage reports token consumption for a generation.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Generation is a provider's answer to a Request.
type Generation struct {
	Text         string
	Usage        Usage
	FinishReason string
	// Sources holds web citations for providers that ground answers in search.
	Sources []models.SearchResult
}

// Metadata returns the response metadata stored alongside a model result.
func (g *Generation) Metadata() map[string]any {
	return map[string]any{
		"usage": map[string]any{
			"promptTokens":     g.Usage.PromptTokens,
			"completionTokens": g.Usage.CompletionTokens,
			"totalTokens":      g.Usage.TotalTokens,
		},
		"finishReason": g.FinishReason,
	}
}

// Provider generates text from one upstream LLM.
type Provider interface {
	// Name returns the provider identifier (openai, google or claude).
	Name() string
	// Model returns the upstream model name used for requests.
	Model() string
	// Generate sends the request and returns the generated text.
	Generate(ctx context.Context, req Request) (*Generation, error)
}

// ObjectRequest asks a model for JSON matching the shape of Schema.
type ObjectRequest struct {
	// Name identifies the schema to the provider.
	Name        string
	Description string
	System      string
	Prompt      string
	MaxTokens   int
	// Schema is a zero value of the Go type describing the expected output.
	Schema any
}

// ObjectGenerator produces structured output and decodes it into out.
type ObjectGenerator interface {
	GenerateObject(ctx context.Context, req ObjectRequest, out any) error
}
