package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockProvider is a configurable Provider for tests.
type MockProvider struct {
	NameValue  string
	ModelValue string
	// GenerateFunc is called by Generate. If nil, Generate echoes the prompt.
	GenerateFunc func(ctx context.Context, req Request) (*Generation, error)

	mu       sync.Mutex
	requests []Request
}

// NewMockProvider creates a mock provider with the given name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{NameValue: name, ModelValue: name + "-mock"}
}

func (m *MockProvider) Name() string  { return m.NameValue }
func (m *MockProvider) Model() string { return m.ModelValue }

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Generation, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &Generation{Text: "response to: " + req.Prompt, FinishReason: "stop"}, nil
}

// Requests returns the requests received so far.
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

var _ Provider = (*MockProvider)(nil)

// MockObjectGenerator is a configurable ObjectGenerator for tests.
type MockObjectGenerator struct {
	// Response, if set, is unmarshalled into out.
	Response string
	Err      error
	// GenerateObjectFunc overrides Response and Err when set.
	GenerateObjectFunc func(ctx context.Context, req ObjectRequest, out any) error

	mu    sync.Mutex
	Calls []ObjectRequest
}

func (m *MockObjectGenerator) GenerateObject(ctx context.Context, req ObjectRequest, out any) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()

	if m.GenerateObjectFunc != nil {
		return m.GenerateObjectFunc(ctx, req, out)
	}
	if m.Err != nil {
		return m.Err
	}
	if m.Response == "" {
		return nil
	}
	return json.Unmarshal([]byte(m.Response), out)
}

// CallCount returns the number of GenerateObject calls.
func (m *MockObjectGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

var _ ObjectGenerator = (*MockObjectGenerator)(nil)

// MockDispatcher is a configurable Dispatcher for tests.
type MockDispatcher struct {
	Names []string
	// Outcomes, keyed by provider, are returned for each dispatched provider.
	// Providers without an entry succeed with a canned response.
	Outcomes map[string]ProviderOutcome

	mu    sync.Mutex
	Calls []DispatchCall
}

// DispatchCall records one dispatch.
type DispatchCall struct {
	Query     string
	TopicName string
}

func (m *MockDispatcher) Providers() []string { return m.Names }

func (m *MockDispatcher) Dispatch(ctx context.Context, query, topicName string) []ProviderOutcome {
	m.mu.Lock()
	m.Calls = append(m.Calls, DispatchCall{Query: query, TopicName: topicName})
	m.mu.Unlock()

	var outcomes []ProviderOutcome
	for _, name := range m.Names {
		if o, ok := m.Outcomes[name]; ok {
			o.Provider = name
			outcomes = append(outcomes, o)
			continue
		}
		outcomes = append(outcomes, ProviderOutcome{
			Provider: name,
			Response: name + " answer",
			Metadata: map[string]any{"finishReason": "stop"},
		})
	}
	return outcomes
}

var _ Dispatcher = (*MockDispatcher)(nil)
