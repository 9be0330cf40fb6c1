package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/logging"
	"github.com/lookout-hq/lookout/pkg/models"
)

// DefaultGeminiBaseURL is the Generative Language API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiConfig holds configuration for the Gemini REST client.
type GeminiConfig struct {
	APIKey    string
	Model     string // e.g. "gemini-1.5-pro"
	MaxTokens int
	BaseURL   string
	// SearchGrounding attaches the Google Search tool so answers cite web sources.
	SearchGrounding bool
	Timeout         time.Duration
}

// GeminiClient calls the Gemini generateContent endpoint over REST.
type GeminiClient struct {
	http            *resty.Client
	model           string
	maxTokens       int
	searchGrounding bool
	logger          *zap.Logger
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens  int    `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []map[string]any        `json:"tools,omitempty"`
}

type geminiGroundingChunk struct {
	Web *struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"web,omitempty"`
}

type geminiGroundingSupport struct {
	Segment struct {
		Text string `json:"text"`
	} `json:"segment"`
	GroundingChunkIndices []int `json:"groundingChunkIndices"`
}

type geminiCandidate struct {
	Content           geminiContent `json:"content"`
	FinishReason      string        `json:"finishReason"`
	GroundingMetadata *struct {
		GroundingChunks   []geminiGroundingChunk   `json:"groundingChunks"`
		GroundingSupports []geminiGroundingSupport `json:"groundingSupports"`
	} `json:"groundingMetadata,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGeminiClient creates a Gemini REST client.
func NewGeminiClient(cfg *GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("x-goog-api-key", cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &GeminiClient{
		http:            httpClient,
		model:           cfg.Model,
		maxTokens:       cfg.MaxTokens,
		searchGrounding: cfg.SearchGrounding,
		logger:          logger.Named("gemini"),
	}, nil
}

// Name identifies the client as the google provider.
func (c *GeminiClient) Name() string { return ProviderGoogle }

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// Generate answers a search prompt, grounded in Google Search when enabled.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Generation, error) {
	body := c.buildRequest(req.System, req.Prompt, req.MaxTokens)
	if c.searchGrounding {
		body.Tools = []map[string]any{c.searchTool()}
	}

	resp, err := c.generate(ctx, body)
	if err != nil {
		return nil, err
	}

	candidate := resp.Candidates[0]
	return &Generation{
		Text: candidateText(candidate),
		Usage: Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
		FinishReason: candidate.FinishReason,
		Sources:      groundingSources(candidate),
	}, nil
}

// GenerateObject asks Gemini for a JSON response and decodes it into out.
// Gemini's JSON mode is used without a response schema; the prompt describes the shape.
func (c *GeminiClient) GenerateObject(ctx context.Context, req ObjectRequest, out any) error {
	body := c.buildRequest(req.System, req.Prompt, req.MaxTokens)
	body.GenerationConfig.ResponseMimeType = "application/json"

	resp, err := c.generate(ctx, body)
	if err != nil {
		return err
	}

	return decodeStructured(candidateText(resp.Candidates[0]), out, ProviderGoogle, c.model)
}

func (c *GeminiClient) buildRequest(system, prompt string, maxTokens int) *geminiRequest {
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	body := &geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{MaxOutputTokens: maxTokens},
	}
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	return body
}

// searchTool returns the grounding tool for the configured model generation.
// Gemini 1.x uses google_search_retrieval; later models use google_search.
func (c *GeminiClient) searchTool() map[string]any {
	if strings.HasPrefix(c.model, "gemini-1.") {
		return map[string]any{"google_search_retrieval": map[string]any{}}
	}
	return map[string]any{"google_search": map[string]any{}}
}

func (c *GeminiClient) generate(ctx context.Context, body *geminiRequest) (*geminiResponse, error) {
	var result geminiResponse
	var apiErr geminiErrorBody

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("model", c.model).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/models/{model}:generateContent")
	if err != nil {
		c.logger.Error("Gemini request failed",
			zap.Duration("elapsed", time.Since(start)),
			logging.SafeError(err))
		classified := ClassifyError(err)
		classified.Provider = ProviderGoogle
		classified.Model = c.model
		return nil, classified
	}

	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(resp.Body()))
		}
		cause := fmt.Errorf("gemini: %s", msg)
		classified := classifyStatus(resp.StatusCode(), cause)
		classified.StatusCode = resp.StatusCode()
		classified.Provider = ProviderGoogle
		classified.Model = c.model
		c.logger.Error("Gemini returned an error",
			zap.Int("status", resp.StatusCode()),
			zap.String("error_status", apiErr.Error.Status),
			zap.Duration("elapsed", time.Since(start)))
		return nil, classified
	}

	if len(result.Candidates) == 0 {
		msg := "no candidates in response"
		if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
			msg = "prompt blocked: " + result.PromptFeedback.BlockReason
		}
		return nil, NewErrorWithContext(ErrorTypeResponse, msg, false, nil, ProviderGoogle, c.model, 0)
	}

	c.logger.Debug("Gemini request completed",
		zap.Int("prompt_tokens", result.UsageMetadata.PromptTokenCount),
		zap.Int("completion_tokens", result.UsageMetadata.CandidatesTokenCount),
		zap.Duration("elapsed", time.Since(start)))

	return &result, nil
}

func candidateText(candidate geminiCandidate) string {
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// groundingSources converts grounding chunks into search results. A chunk's
// snippet is the first response segment that cites it.
func groundingSources(candidate geminiCandidate) []models.SearchResult {
	if candidate.GroundingMetadata == nil {
		return nil
	}

	snippets := make(map[int]string)
	for _, support := range candidate.GroundingMetadata.GroundingSupports {
		for _, idx := range support.GroundingChunkIndices {
			if _, ok := snippets[idx]; !ok {
				snippets[idx] = support.Segment.Text
			}
		}
	}

	var sources []models.SearchResult
	for i, chunk := range candidate.GroundingMetadata.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		sources = append(sources, models.SearchResult{
			Title:   chunk.Web.Title,
			URL:     chunk.Web.URI,
			Snippet: snippets[i],
		})
	}
	return sources
}

var (
	_ Provider        = (*GeminiClient)(nil)
	_ ObjectGenerator = (*GeminiClient)(nil)
)
