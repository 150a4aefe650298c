package agent

import (
	"context"
	"fmt"

	"github.com/soyeahso/linegpt/internal/llm"
)

// Tool is a capability the agent can invoke while answering.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the LLM.
	Description() string

	// InputSchema returns the JSON Schema for the tool's input.
	InputSchema() string

	// Execute runs the tool with the given JSON input and returns its output.
	Execute(ctx context.Context, input string) (string, error)
}

// ToolRegistry holds available tools in registration order.
type ToolRegistry struct {
	order []string
	tools map[string]Tool
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool. Names must be unique.
func (r *ToolRegistry) Register(t Tool) error {
	if _, dup := r.tools[t.Name()]; dup {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.order = append(r.order, t.Name())
	r.tools[t.Name()] = t
	return nil
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *ToolRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int { return len(r.order) }

// Specs returns engine-ready tool specs in registration order.
func (r *ToolRegistry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, llm.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
			Execute:     t.Execute,
		})
	}
	return specs
}
