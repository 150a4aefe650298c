package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/linegpt/internal/logging"
)

// Defaults for OpenAIConfig fields left zero.
const (
	DefaultModel         = "gpt-3.5-turbo-0613"
	DefaultTimeout       = 120 * time.Second
	DefaultMaxSteps      = 8
	DefaultMaxToolTokens = 2000
)

const emptySchema = `{"type":"object","properties":{}}`

// OpenAIConfig configures an OpenAIEngine.
type OpenAIConfig struct {
	Provider      string // "openai" | "azure"
	APIKey        string
	BaseURL       string
	APIVersion    string // azure only
	Model         string
	Timeout       time.Duration // per chat-completion call
	MaxSteps      int
	MaxToolTokens int
	HTTPClient    *http.Client
}

// OpenAIEngine answers with the chat completions API, calling tools through
// function calling until the model returns a plain answer.
type OpenAIEngine struct {
	client    *openai.Client
	name      string
	model     string
	timeout   time.Duration
	maxSteps  int
	truncator *Truncator
	log       *logging.Logger
}

// NewOpenAIEngine creates an engine from cfg.
func NewOpenAIEngine(cfg OpenAIConfig, log *logging.Logger) *OpenAIEngine {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.MaxToolTokens == 0 {
		cfg.MaxToolTokens = DefaultMaxToolTokens
	}

	var oc openai.ClientConfig
	name := "openai"
	if cfg.Provider == "azure" {
		oc = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			oc.APIVersion = cfg.APIVersion
		}
		name = "azure"
	} else {
		oc = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIEngine{
		client:    openai.NewClientWithConfig(oc),
		name:      name,
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		maxSteps:  cfg.MaxSteps,
		truncator: NewTruncator(cfg.Model, cfg.MaxToolTokens),
		log:       log.Sub("llm." + name),
	}
}

// Name returns the provider name.
func (e *OpenAIEngine) Name() string { return e.name }

// Model returns the configured model name.
func (e *OpenAIEngine) Model() string { return e.model }

// Run answers req.Input, executing tool calls the model asks for.
func (e *OpenAIEngine) Run(ctx context.Context, req Request) (*Response, error) {
	msgs := e.buildMessages(req)
	tools := buildTools(req.Tools)
	specs := make(map[string]ToolSpec, len(req.Tools))
	for _, t := range req.Tools {
		specs[t.Name] = t
	}

	resp := &Response{Model: e.model}

	for step := 0; step < e.maxSteps; step++ {
		out, err := e.complete(ctx, openai.ChatCompletionRequest{
			Model:       e.model,
			Messages:    msgs,
			Tools:       tools,
			Temperature: wireTemperature(req.Temperature),
		})
		if err != nil {
			return nil, err
		}
		if out.Model != "" {
			resp.Model = out.Model
		}
		resp.Usage.InputTokens += out.Usage.PromptTokens
		resp.Usage.OutputTokens += out.Usage.CompletionTokens

		if len(out.Choices) == 0 {
			return nil, errors.New("chat completion returned no choices")
		}
		msg := out.Choices[0].Message

		if len(msg.ToolCalls) == 0 {
			resp.Output = msg.Content
			return resp, nil
		}

		if err := checkToolCalls(msg, specs); err != nil {
			return nil, err
		}

		e.log.Debug().Int("step", step).Int("toolCalls", len(msg.ToolCalls)).Msg("executing tool calls")

		msgs = append(msgs, msg)
		steps := e.runTools(ctx, msg.ToolCalls, specs)
		for i, s := range steps {
			obs := s.Output
			if s.Error != "" {
				obs = "Error: " + s.Error
			}
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    obs,
				ToolCallID: msg.ToolCalls[i].ID,
				Name:       s.Tool,
			})
		}
		resp.Steps = append(resp.Steps, steps...)
	}

	return nil, fmt.Errorf("%w (%d)", ErrTooManySteps, e.maxSteps)
}

// complete issues one chat completion under the per-call timeout.
func (e *OpenAIEngine) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	out, err := e.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return out, fmt.Errorf("chat completion: %w", err)
	}

	e.log.Debug().
		Str("model", out.Model).
		Int("promptTokens", out.Usage.PromptTokens).
		Int("completionTokens", out.Usage.CompletionTokens).
		Dur("duration", time.Since(start)).
		Msg("chat completion")
	return out, nil
}

func (e *OpenAIEngine) buildMessages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Input})
}

func buildTools(specs []ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, len(specs))
	for i, s := range specs {
		schema := s.InputSchema
		if schema == "" {
			schema = emptySchema
		}
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  json.RawMessage(schema),
			},
		}
	}
	return tools
}

// checkToolCalls rejects calls naming unknown tools or carrying arguments
// that are not JSON. When the model also wrote text, that text is returned
// as an OutputParseError so it can still reach the user.
func checkToolCalls(msg openai.ChatCompletionMessage, specs map[string]ToolSpec) error {
	for _, tc := range msg.ToolCalls {
		var problem string
		if _, ok := specs[tc.Function.Name]; !ok {
			problem = fmt.Sprintf("unknown tool %q", tc.Function.Name)
		} else if !json.Valid([]byte(tc.Function.Arguments)) {
			problem = fmt.Sprintf("invalid arguments for %s", tc.Function.Name)
		}
		if problem == "" {
			continue
		}
		if strings.TrimSpace(msg.Content) != "" {
			return &OutputParseError{Output: msg.Content}
		}
		return fmt.Errorf("model produced an unusable tool call: %s", problem)
	}
	return nil
}

// runTools executes one step's tool calls concurrently. Results keep the
// order of calls.
func (e *OpenAIEngine) runTools(ctx context.Context, calls []openai.ToolCall, specs map[string]ToolSpec) []Step {
	steps := make([]Step, len(calls))
	var g errgroup.Group
	for i, tc := range calls {
		g.Go(func() error {
			start := time.Now()
			s := Step{Tool: tc.Function.Name, Input: tc.Function.Arguments}
			out, err := safeExecute(ctx, specs[tc.Function.Name], tc.Function.Arguments)
			if err != nil {
				s.Error = err.Error()
			} else {
				s.Output = e.truncator.Truncate(out)
			}
			s.Duration = time.Since(start)
			steps[i] = s
			return nil
		})
	}
	_ = g.Wait()
	return steps
}

func safeExecute(ctx context.Context, spec ToolSpec, input string) (out string, err error) {
	if spec.Execute == nil {
		return "", fmt.Errorf("tool %s has no executor", spec.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", spec.Name, r)
		}
	}()
	return spec.Execute(ctx, input)
}

// wireTemperature maps 0 to the smallest positive float32. The client drops
// a zero temperature from the request, which the API reads as 1.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
