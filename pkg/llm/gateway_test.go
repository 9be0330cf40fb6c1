package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/metrics"
	"github.com/lookout-hq/lookout/pkg/models"
)

func newTestGateway(providers ...Provider) *Gateway {
	return NewGateway(providers, GatewayConfig{MaxTokens: 1000}, nil, zap.NewNop())
}

func TestBuildSearchPrompt(t *testing.T) {
	assert.Equal(t,
		"Search and analyze information about \"Acme\":\nbest project management tools",
		BuildSearchPrompt("Acme", "best project management tools"))
}

func TestGateway_Dispatch_AllSucceed(t *testing.T) {
	openai := NewMockProvider(ProviderOpenAI)
	google := NewMockProvider(ProviderGoogle)
	google.GenerateFunc = func(ctx context.Context, req Request) (*Generation, error) {
		return &Generation{
			Text:         "grounded",
			Usage:        Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
			FinishReason: "STOP",
			Sources:      []models.SearchResult{{Title: "Acme", URL: "https://acme.com"}},
		}, nil
	}
	claude := NewMockProvider(ProviderClaude)

	outcomes := newTestGateway(openai, google, claude).Dispatch(context.Background(), "crm tools", "Acme")

	require.Len(t, outcomes, 3)
	assert.Equal(t, ProviderOpenAI, outcomes[0].Provider)
	assert.Equal(t, ProviderGoogle, outcomes[1].Provider)
	assert.Equal(t, ProviderClaude, outcomes[2].Provider)
	for _, o := range outcomes {
		assert.False(t, o.Failed())
	}

	assert.Equal(t, "grounded", outcomes[1].Response)
	assert.Equal(t, "STOP", outcomes[1].Metadata["finishReason"])
	usage := outcomes[1].Metadata["usage"].(map[string]any)
	assert.Equal(t, 30, usage["totalTokens"])
	assert.Len(t, outcomes[1].Results, 1)

	req := openai.Requests()[0]
	assert.Equal(t, BuildSearchPrompt("Acme", "crm tools"), req.Prompt)
	assert.Equal(t, 1000, req.MaxTokens)
}

func TestGateway_Dispatch_FailureDoesNotShortCircuit(t *testing.T) {
	failing := NewMockProvider(ProviderOpenAI)
	failing.GenerateFunc = func(ctx context.Context, req Request) (*Generation, error) {
		return nil, NewError(ErrorTypeAuth, "authentication failed", false, errors.New("401"))
	}

	var slowFinished atomic.Bool
	slow := NewMockProvider(ProviderClaude)
	slow.GenerateFunc = func(ctx context.Context, req Request) (*Generation, error) {
		time.Sleep(20 * time.Millisecond)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slowFinished.Store(true)
		return &Generation{Text: "slow but fine"}, nil
	}

	outcomes := newTestGateway(failing, slow).Dispatch(context.Background(), "q", "t")

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Failed())
	assert.Empty(t, outcomes[0].Response)
	assert.Empty(t, outcomes[0].Metadata)
	assert.Contains(t, outcomes[0].Error, "authentication failed")

	assert.False(t, outcomes[1].Failed())
	assert.Equal(t, "slow but fine", outcomes[1].Response)
	assert.True(t, slowFinished.Load())
}

func TestGateway_Dispatch_AllFail(t *testing.T) {
	providers := make([]Provider, 0, 3)
	for _, name := range AllProviders {
		p := NewMockProvider(name)
		p.GenerateFunc = func(ctx context.Context, req Request) (*Generation, error) {
			return nil, errors.New("down")
		}
		providers = append(providers, p)
	}

	outcomes := newTestGateway(providers...).Dispatch(context.Background(), "q", "t")
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.True(t, o.Failed())
		assert.Equal(t, "down", o.Error)
	}
}

func TestGateway_ProvidersInDispatchOrder(t *testing.T) {
	g := newTestGateway(NewMockProvider(ProviderOpenAI), NewMockProvider(ProviderClaude))

	outcomes := g.Dispatch(context.Background(), "q", "t")

	require.Len(t, outcomes, 2)
	assert.Equal(t, ProviderOpenAI, outcomes[0].Provider)
	assert.Equal(t, ProviderClaude, outcomes[1].Provider)
	assert.Equal(t, []string{ProviderOpenAI, ProviderClaude}, g.Providers())
}

func TestGateway_CallTimeout(t *testing.T) {
	hung := NewMockProvider(ProviderGoogle)
	hung.GenerateFunc = func(ctx context.Context, req Request) (*Generation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	g := NewGateway([]Provider{hung}, GatewayConfig{CallTimeout: 10 * time.Millisecond}, nil, zap.NewNop())
	outcomes := g.Dispatch(context.Background(), "q", "t")

	require.Len(t, outcomes, 1)
	assert.Contains(t, outcomes[0].Error, "deadline exceeded")
}

func TestGateway_CircuitBreakerRejectsAfterThreshold(t *testing.T) {
	var calls atomic.Int32
	flaky := NewMockProvider(ProviderOpenAI)
	flaky.GenerateFunc = func(ctx context.Context, req Request) (*Generation, error) {
		calls.Add(1)
		return nil, errors.New("503 service unavailable")
	}

	m := metrics.New()
	g := NewGateway([]Provider{flaky}, GatewayConfig{
		Breaker: CircuitBreakerConfig{Threshold: 2, Cooldown: time.Hour},
	}, m, zap.NewNop())

	g.Dispatch(context.Background(), "q", "t")
	g.Dispatch(context.Background(), "q", "t")
	outcomes := g.Dispatch(context.Background(), "q", "t")

	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, outcomes, 1)
	assert.Contains(t, outcomes[0].Error, "circuit breaker open")
	series, err := testutil.GatherAndCount(m.Registry(), "lookout_provider_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "error and rejected outcomes")
	circuits, err := testutil.GatherAndCount(m.Registry(), "lookout_provider_circuit_state")
	require.NoError(t, err)
	assert.Equal(t, 1, circuits)
}
