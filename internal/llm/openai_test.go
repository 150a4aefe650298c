package llm

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/linegpt/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// fakeOpenAI replies to chat completions with scripted messages, one per call,
// and records every request it saw.
type fakeOpenAI struct {
	mu       sync.Mutex
	replies  []openai.ChatCompletionMessage
	requests []openai.ChatCompletionRequest
}

func (f *fakeOpenAI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		idx := len(f.requests)
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		if idx >= len(f.replies) {
			http.Error(w, `{"error":{"message":"no more replies","type":"server_error"}}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-test",
			Model: "gpt-test-0613",
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      f.replies[idx],
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}
}

func newTestEngine(t *testing.T, f *fakeOpenAI, opts ...func(*OpenAIConfig)) *OpenAIEngine {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	cfg := OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-test"}
	for _, o := range opts {
		o(&cfg)
	}
	return NewOpenAIEngine(cfg, silentLog())
}

func toolCall(id, name, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:       id,
		Type:     openai.ToolTypeFunction,
		Function: openai.FunctionCall{Name: name, Arguments: args},
	}
}

func echoTool(name string) ToolSpec {
	return ToolSpec{
		Name:        name,
		Description: "echoes its input",
		InputSchema: `{"type":"object","properties":{"query":{"type":"string"}}}`,
		Execute: func(_ context.Context, input string) (string, error) {
			return name + ":" + input, nil
		},
	}
}

func TestOpenAIEngineDirectAnswer(t *testing.T) {
	f := &fakeOpenAI{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, Content: "こんにちは！"},
	}}
	e := newTestEngine(t, f)

	resp, err := e.Run(context.Background(), Request{
		System:  "be helpful",
		History: []Message{{Role: RoleUser, Content: "earlier"}, {Role: RoleAssistant, Content: "reply"}},
		Input:   "hello",
		Tools:   []ToolSpec{echoTool("calculator")},
	})
	require.NoError(t, err)
	assert.Equal(t, "こんにちは！", resp.Output)
	assert.Equal(t, "gpt-test-0613", resp.Model)
	assert.Empty(t, resp.Steps)
	assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 5}, resp.Usage)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, "gpt-test", req.Model)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "be helpful", req.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, req.Messages[2].Role)
	assert.Equal(t, "hello", req.Messages[3].Content)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "calculator", req.Tools[0].Function.Name)
	assert.Greater(t, req.Temperature, float32(0), "zero temperature must still be sent")
}

func TestOpenAIEngineToolRoundTrip(t *testing.T) {
	f := &fakeOpenAI{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, ToolCalls: []openai.ToolCall{
			toolCall("call_1", "web_search", `{"query":"weather"}`),
			toolCall("call_2", "pubmed", `{"query":"aspirin"}`),
		}},
		{Role: openai.ChatMessageRoleAssistant, Content: "final answer"},
	}}
	e := newTestEngine(t, f)

	resp, err := e.Run(context.Background(), Request{
		Input: "q",
		Tools: []ToolSpec{echoTool("web_search"), echoTool("pubmed")},
	})
	require.NoError(t, err)
	assert.Equal(t, "final answer", resp.Output)
	require.Len(t, resp.Steps, 2)
	assert.Equal(t, "web_search", resp.Steps[0].Tool)
	assert.Equal(t, `web_search:{"query":"weather"}`, resp.Steps[0].Output)
	assert.Equal(t, "pubmed", resp.Steps[1].Tool)
	assert.Equal(t, Usage{InputTokens: 20, OutputTokens: 10}, resp.Usage)

	require.Len(t, f.requests, 2)
	second := f.requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, openai.ChatMessageRoleAssistant, second[1].Role)
	assert.Equal(t, openai.ChatMessageRoleTool, second[2].Role)
	assert.Equal(t, "call_1", second[2].ToolCallID)
	assert.Equal(t, "call_2", second[3].ToolCallID)
	assert.Equal(t, `pubmed:{"query":"aspirin"}`, second[3].Content)
}

func TestOpenAIEngineToolsRunConcurrently(t *testing.T) {
	f := &fakeOpenAI{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, ToolCalls: []openai.ToolCall{
			toolCall("a", "slow", `{}`),
			toolCall("b", "slow", `{}`),
		}},
		{Role: openai.ChatMessageRoleAssistant, Content: "done"},
	}}
	e := newTestEngine(t, f)

	var running, peak atomic.Int32
	release := make(chan struct{})
	slow := ToolSpec{Name: "slow", Execute: func(ctx context.Context, _ string) (string, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if n == 2 {
			close(release)
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		running.Add(-1)
		return "ok", nil
	}}

	_, err := e.Run(context.Background(), Request{Input: "q", Tools: []ToolSpec{slow}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), peak.Load())
}

func TestOpenAIEngineToolErrorBecomesObservation(t *testing.T) {
	f := &fakeOpenAI{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, ToolCalls: []openai.ToolCall{toolCall("c1", "broken", `{}`)}},
		{Role: openai.ChatMessageRoleAssistant, Content: "申し訳ありません"},
	}}
	e := newTestEngine(t, f)

	broken := ToolSpec{Name: "broken", Execute: func(context.Context, string) (string, error) {
		return "", errors.New("upstream 503")
	}}
	resp, err := e.Run(context.Background(), Request{Input: "q", Tools: []ToolSpec{broken}})
	require.NoError(t, err)
	require.Len(t, resp.Steps, 1)
	assert.Equal(t, "upstream 503", resp.Steps[0].Error)
	assert.Equal(t, "Error: upstream 503", f.requests[1].Messages[2].Content)
}

func TestOpenAIEngineToolPanicIsContained(t *testing.T) {
	f := &fakeOpenAI{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, ToolCalls: []openai.ToolCall{toolCall("c1", "boom", `{}`)}},
		{Role: openai.ChatMessageRoleAssistant, Content: "ok"},
	}}
	e := newTestEngine(t, f)

	boom := ToolSpec{Name: "boom", Execute: func(context.Context, string) (string, error) { panic("kaboom") }}
	resp, err := e.Run(context.Background(), Request{Input: "q", Tools: []ToolSpec{boom}})
	require.NoError(t, err)
	assert.Contains(t, resp.Steps[0].Error, "kaboom")
}

func TestOpenAIEngineUnparseableWithText(t *testing.T) {
	f := &fakeOpenAI{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, Content: "答えは42です", ToolCalls: []openai.ToolCall{
			toolCall("c1", "calculator", `{"expression": 6*7`),
		}},
	}}
	e := newTestEngine(t, f)

	_, err := e.Run(context.Background(), Request{Input: "q", Tools: []ToolSpec{echoTool("calculator")}})
	require.Error(t, err)

	var perr *OutputParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "答えは42です", perr.Output)
	assert.Equal(t, ParseErrorPrefix+"答えは42です", err.Error())
}

func TestOpenAIEngineUnknownToolWithText(t *testing.T) {
	f := &fakeOpenAI{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, Content: "partial", ToolCalls: []openai.ToolCall{
			toolCall("c1", "python", `{}`),
		}},
	}}
	e := newTestEngine(t, f)

	_, err := e.Run(context.Background(), Request{Input: "q"})
	var perr *OutputParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "partial", perr.Output)
}

func TestOpenAIEngineUnknownToolWithoutText(t *testing.T) {
	f := &fakeOpenAI{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, ToolCalls: []openai.ToolCall{toolCall("c1", "python", `{}`)}},
	}}
	e := newTestEngine(t, f)

	_, err := e.Run(context.Background(), Request{Input: "q"})
	require.Error(t, err)
	var perr *OutputParseError
	assert.False(t, errors.As(err, &perr))
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestOpenAIEngineTooManySteps(t *testing.T) {
	loop := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, ToolCalls: []openai.ToolCall{
		toolCall("c", "web_search", `{"query":"again"}`),
	}}
	f := &fakeOpenAI{replies: []openai.ChatCompletionMessage{loop, loop, loop}}
	e := newTestEngine(t, f, func(c *OpenAIConfig) { c.MaxSteps = 2 })

	_, err := e.Run(context.Background(), Request{Input: "q", Tools: []ToolSpec{echoTool("web_search")}})
	assert.ErrorIs(t, err, ErrTooManySteps)
	assert.Len(t, f.requests, 2)
}

func TestOpenAIEngineAPIError(t *testing.T) {
	f := &fakeOpenAI{}
	e := newTestEngine(t, f)

	_, err := e.Run(context.Background(), Request{Input: "q"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "chat completion:"))

	var perr *OutputParseError
	assert.False(t, errors.As(err, &perr))
}

func TestOpenAIEngineTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	e := NewOpenAIEngine(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Timeout: 50 * time.Millisecond}, silentLog())
	_, err := e.Run(context.Background(), Request{Input: "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewOpenAIEngineDefaults(t *testing.T) {
	e := NewOpenAIEngine(OpenAIConfig{APIKey: "k"}, silentLog())
	assert.Equal(t, "openai", e.Name())
	assert.Equal(t, DefaultModel, e.Model())
	assert.Equal(t, DefaultTimeout, e.timeout)
	assert.Equal(t, DefaultMaxSteps, e.maxSteps)

	az := NewOpenAIEngine(OpenAIConfig{Provider: "azure", APIKey: "k", BaseURL: "https://example.openai.azure.com"}, silentLog())
	assert.Equal(t, "azure", az.Name())
}

func TestWireTemperature(t *testing.T) {
	assert.Equal(t, float32(math.SmallestNonzeroFloat32), wireTemperature(0))
	assert.Equal(t, float32(0.7), wireTemperature(0.7))
}

func TestBuildToolsDefaultsSchema(t *testing.T) {
	tools := buildTools([]ToolSpec{{Name: "t"}})
	require.Len(t, tools, 1)
	assert.Equal(t, json.RawMessage(emptySchema), tools[0].Function.Parameters)
	assert.Nil(t, buildTools(nil))
}
