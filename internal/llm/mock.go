package llm

import "context"

// MockEngine is a test double for Engine.
type MockEngine struct {
	ProviderName string
	RunFunc      func(ctx context.Context, req Request) (*Response, error)
}

func (m *MockEngine) Name() string { return m.ProviderName }

func (m *MockEngine) Run(ctx context.Context, req Request) (*Response, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, req)
	}
	return &Response{Output: "mock response"}, nil
}
