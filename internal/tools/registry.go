// Package tools exposes note, graph, analysis, and backup operations as a
// named tool catalog callable over a line-oriented JSON transport.
package tools

import (
	"context"
	"fmt"
	"sync"
)

// Handler executes one tool call.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Def describes a tool for catalog listings.
type Def struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ToolError is a structured failure returned to callers.
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e ToolError) Error() string {
	return e.Message
}

// Error codes
const (
	ErrorInvalidArgument = "invalid_argument"
	ErrorNotFound        = "not_found"
	ErrorConstraint      = "constraint"
	ErrorInternal        = "internal"
)

func invalidArg(format string, args ...any) ToolError {
	return ToolError{Code: ErrorInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Registry holds tool handlers in registration order.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	defs     map[string]Def
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		defs:     make(map[string]Def),
	}
}

func (r *Registry) Register(def Def, handler Handler) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required for tool %s", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	r.handlers[def.Name] = handler
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// HandlerFor looks up a tool handler by name.
func (r *Registry) HandlerFor(tool string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[tool]
	return h, ok
}

// Defs returns the catalog in registration order.
func (r *Registry) Defs() []Def {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Def, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Call resolves and runs a tool in one step.
func (r *Registry) Call(ctx context.Context, tool string, args map[string]any) (any, error) {
	h, ok := r.HandlerFor(tool)
	if !ok {
		return nil, ToolError{Code: ErrorNotFound, Message: fmt.Sprintf("unknown tool: %s", tool)}
	}
	if args == nil {
		args = map[string]any{}
	}
	return h(ctx, args)
}
