// Package llm defines the reasoning engine contract and its OpenAI
// function-calling implementation.
package llm

import (
	"context"
	"errors"
	"time"
)

// Role constants for history messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ParseErrorPrefix starts the text of every OutputParseError.
const ParseErrorPrefix = "Could not parse LLM output: "

// ErrTooManySteps is returned when the model keeps calling tools past the
// configured step limit.
var ErrTooManySteps = errors.New("agent stopped after too many tool steps")

// Message is a single prior turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolFunc runs a tool with its JSON arguments.
type ToolFunc func(ctx context.Context, input string) (string, error)

// ToolSpec describes a tool the engine may call.
type ToolSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	InputSchema string   `json:"inputSchema"` // JSON Schema string
	Execute     ToolFunc `json:"-"`
}

// Request is the input to one engine run.
type Request struct {
	System      string
	History     []Message
	Input       string
	Tools       []ToolSpec
	Temperature float32
}

// Step is one tool call the engine made while answering.
type Step struct {
	Tool     string        `json:"tool"`
	Input    string        `json:"input"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Usage tracks token consumption across every call of a run.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Response is the result of a successful run. Output is the final answer
// only; intermediate tool traffic is in Steps.
type Response struct {
	Output string `json:"output"`
	Steps  []Step `json:"steps,omitempty"`
	Model  string `json:"model,omitempty"`
	Usage  Usage  `json:"usage"`
}

// OutputParseError reports model output that could not be interpreted as an
// answer or a tool call. Output holds the raw text the model produced.
type OutputParseError struct {
	Output string
}

func (e *OutputParseError) Error() string {
	return ParseErrorPrefix + e.Output
}

// Engine runs a tool-augmented completion.
type Engine interface {
	Run(ctx context.Context, req Request) (*Response, error)
	// Name returns the provider name, e.g. "openai".
	Name() string
}
