// Package agent answers one message with a tool-augmented reasoning engine
// and classifies the outcome for the response pipeline.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/linegpt/internal/llm"
	"github.com/soyeahso/linegpt/internal/logging"
	"github.com/soyeahso/linegpt/internal/memory"
)

// Kind is the shape of an agent outcome.
type Kind int

const (
	// Answered: the engine produced a final answer.
	Answered Kind = iota
	// ParseSalvage: the engine failed to parse its own output, but the raw
	// output is usable as the answer.
	ParseSalvage
	// Failed: any other failure.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Answered:
		return "answered"
	case ParseSalvage:
		return "salvaged"
	default:
		return "failed"
	}
}

// Result is the classified outcome of one Invoke.
type Result struct {
	Kind     Kind
	Text     string // answer text; empty when Failed
	Err      error  // set unless Answered
	Steps    []llm.Step
	Model    string
	Duration time.Duration
}

// Config tunes an Agent.
type Config struct {
	SystemPrompt string // empty selects SystemPrompt
	ExtraPrompt  string
	Temperature  float32
	Verbose      bool // log every tool step at debug level
}

// Agent pairs an engine with the fixed tool set and system prompt.
type Agent struct {
	engine      llm.Engine
	tools       *ToolRegistry
	prompt      string
	temperature float32
	verbose     bool
	log         *logging.Logger
}

// New creates an agent.
func New(engine llm.Engine, tools *ToolRegistry, cfg Config, log *logging.Logger) *Agent {
	if tools == nil {
		tools = NewToolRegistry()
	}
	return &Agent{
		engine:      engine,
		tools:       tools,
		prompt:      BuildSystemPrompt(cfg.SystemPrompt, cfg.ExtraPrompt),
		temperature: cfg.Temperature,
		verbose:     cfg.Verbose,
		log:         log.Sub("agent"),
	}
}

// Prompt returns the system prompt sent with every request.
func (a *Agent) Prompt() string { return a.prompt }

// Invoke answers input given the conversation window. It never panics and
// never returns an error directly; failures are carried in the Result.
func (a *Agent) Invoke(ctx context.Context, window []memory.Turn, input string) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Result{Kind: Failed, Err: fmt.Errorf("agent panicked: %v", r)}
		}
		res.Duration = time.Since(start)
	}()

	resp, err := a.engine.Run(ctx, llm.Request{
		System:      a.prompt,
		History:     toHistory(window),
		Input:       input,
		Tools:       a.tools.Specs(),
		Temperature: a.temperature,
	})

	if resp != nil && a.verbose {
		for i, s := range resp.Steps {
			a.log.Debug().
				Int("step", i).
				Str("tool", s.Tool).
				Str("input", s.Input).
				Str("output", s.Output).
				Str("error", s.Error).
				Dur("duration", s.Duration).
				Msg("tool step")
		}
	}

	res = Classify(resp, err)
	a.log.Debug().Str("kind", res.Kind.String()).Str("model", res.Model).Int("steps", len(res.Steps)).Msg("agent finished")
	return res
}

// Classify maps an engine result to an outcome. A structured
// *llm.OutputParseError is checked first; an error whose text starts with
// llm.ParseErrorPrefix is treated the same way.
func Classify(resp *llm.Response, err error) Result {
	if err == nil {
		if resp == nil {
			return Result{Kind: Failed, Err: errors.New("engine returned no response")}
		}
		return Result{Kind: Answered, Text: resp.Output, Steps: resp.Steps, Model: resp.Model}
	}

	var perr *llm.OutputParseError
	if errors.As(err, &perr) {
		return Result{Kind: ParseSalvage, Text: perr.Output, Err: err}
	}
	if msg := err.Error(); strings.HasPrefix(msg, llm.ParseErrorPrefix) {
		return Result{Kind: ParseSalvage, Text: strings.TrimPrefix(msg, llm.ParseErrorPrefix), Err: err}
	}
	return Result{Kind: Failed, Err: err}
}

func toHistory(window []memory.Turn) []llm.Message {
	history := make([]llm.Message, 0, len(window))
	for _, t := range window {
		role := llm.RoleUser
		if t.Role == memory.RoleAI {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: t.Content})
	}
	return history
}
