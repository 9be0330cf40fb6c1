package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lookout-hq/lookout/pkg/logging"
	"github.com/lookout-hq/lookout/pkg/metrics"
	"github.com/lookout-hq/lookout/pkg/models"
)

// ProviderOutcome is the result of sending one prompt to one provider.
// A failed call has an empty Response and Metadata and a non-empty Error.
type ProviderOutcome struct {
	Provider string
	Response string
	Metadata map[string]any
	Results  []models.SearchResult
	Error    string
}

// Failed reports whether the provider call failed.
func (o ProviderOutcome) Failed() bool {
	return o.Error != ""
}

// Dispatcher fans a search prompt out to the configured providers.
type Dispatcher interface {
	// Dispatch sends the prompt to every provider.
	Dispatch(ctx context.Context, query, topicName string) []ProviderOutcome
	// Providers returns the configured provider names in dispatch order.
	Providers() []string
}

// GatewayConfig tunes the gateway's per-call behaviour.
type GatewayConfig struct {
	// CallTimeout bounds each provider call; zero means no timeout beyond ctx.
	CallTimeout time.Duration
	// MaxTokens is passed to every provider; zero leaves provider defaults.
	MaxTokens int
	Breaker   CircuitBreakerConfig
}

// Gateway fans prompts out to every provider concurrently and never
// short-circuits: one outcome is returned per provider regardless of failures.
type Gateway struct {
	providers   []Provider
	breakers    map[string]*CircuitBreaker
	callTimeout time.Duration
	maxTokens   int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewGateway creates a gateway over the given providers. m may be nil.
func NewGateway(providers []Provider, cfg GatewayConfig, m *metrics.Metrics, logger *zap.Logger) *Gateway {
	g := &Gateway{
		providers:   providers,
		breakers:    make(map[string]*CircuitBreaker, len(providers)),
		callTimeout: cfg.CallTimeout,
		maxTokens:   cfg.MaxTokens,
		metrics:     m,
		logger:      logger.Named("gateway"),
	}

	breakerCfg := cfg.Breaker
	hook := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(provider string, from, to CircuitState) {
		g.metrics.SetProviderCircuit(provider, int(to))
		g.logger.Info("Provider circuit changed state",
			zap.String("provider", provider),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		if hook != nil {
			hook(provider, from, to)
		}
	}
	for _, p := range providers {
		g.breakers[p.Name()] = NewCircuitBreaker(p.Name(), breakerCfg)
	}
	return g
}

// BuildSearchPrompt frames a tracking query as a search about the topic.
func BuildSearchPrompt(topicName, query string) string {
	return fmt.Sprintf("Search and analyze information about %q:\n%s", topicName, query)
}

// Providers returns the configured provider names in dispatch order.
func (g *Gateway) Providers() []string {
	names := make([]string, len(g.providers))
	for i, p := range g.providers {
		names[i] = p.Name()
	}
	return names
}

// Dispatch sends the prompt to every configured provider.
func (g *Gateway) Dispatch(ctx context.Context, query, topicName string) []ProviderOutcome {
	outcomes := make([]ProviderOutcome, len(g.providers))
	req := Request{
		Prompt:    BuildSearchPrompt(topicName, query),
		MaxTokens: g.maxTokens,
	}

	// A plain Group: no derived context, so one failure never cancels the rest.
	var eg errgroup.Group
	for i, p := range g.providers {
		eg.Go(func() error {
			outcomes[i] = g.call(ctx, p, req)
			return nil
		})
	}
	_ = eg.Wait()

	return outcomes
}

func (g *Gateway) call(ctx context.Context, p Provider, req Request) ProviderOutcome {
	name := p.Name()
	breaker := g.breakers[name]

	if err := breaker.Allow(); err != nil {
		g.metrics.ObserveProviderCall(name, metrics.OutcomeRejected, 0)
		g.logger.Warn("Provider call rejected by circuit breaker",
			zap.String("provider", name),
			zap.String("reason", logging.ErrorMessage(err)))
		return failedOutcome(name, err)
	}

	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}

	start := time.Now()
	gen, err := p.Generate(ctx, req)
	elapsed := time.Since(start)
	breaker.Record(err)

	if err != nil {
		g.metrics.ObserveProviderCall(name, metrics.OutcomeError, elapsed)
		g.logger.Error("Provider call failed",
			zap.String("provider", name),
			zap.String("model", p.Model()),
			zap.Duration("elapsed", elapsed),
			logging.SafeError(err))
		return failedOutcome(name, err)
	}

	g.metrics.ObserveProviderCall(name, metrics.OutcomeSuccess, elapsed)
	g.logger.Debug("Provider call completed",
		zap.String("provider", name),
		zap.Int("total_tokens", gen.Usage.TotalTokens),
		zap.Duration("elapsed", elapsed))

	return ProviderOutcome{
		Provider: name,
		Response: gen.Text,
		Metadata: gen.Metadata(),
		Results:  gen.Sources,
	}
}

func failedOutcome(provider string, err error) ProviderOutcome {
	msg := logging.ErrorMessage(err)
	if msg == "" {
		msg = "unknown error"
	}
	return ProviderOutcome{
		Provider: provider,
		Metadata: map[string]any{},
		Error:    msg,
	}
}

var _ Dispatcher = (*Gateway)(nil)
