package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/felixgeelhaar/hemv/internal/hint"
	"github.com/felixgeelhaar/hemv/internal/provider"
)

var ErrUnknownTool = errors.New("unknown tool")

// ToolDefinition represents a tool that can be called by the AI.
// Parameters is a JSON schema for the call arguments.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolExecutor is a function that executes a tool call and returns the result.
type ToolExecutor func(ctx context.Context, sessionID string, call provider.ToolCall) (string, error)

type registeredTool struct {
	def    ToolDefinition
	schema *gojsonschema.Schema
	exec   ToolExecutor
}

// ToolRegistry manages available tools and their execution. Arguments are
// checked against the tool's schema before the executor runs.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

// NewToolRegistry creates a new tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]registeredTool),
	}
}

// Register adds a tool to the registry.
func (tr *ToolRegistry) Register(tool ToolDefinition, executor ToolExecutor) error {
	var schema *gojsonschema.Schema
	if tool.Parameters != nil {
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tool.Parameters))
		if err != nil {
			return fmt.Errorf("tool %q has an invalid schema: %w", tool.Name, err)
		}
		schema = s
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	if _, exists := tr.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}

	tr.tools[tool.Name] = registeredTool{def: tool, schema: schema, exec: executor}
	return nil
}

// Unregister removes a tool from the registry.
func (tr *ToolRegistry) Unregister(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	delete(tr.tools, name)
}

// Get returns a tool definition by name.
func (tr *ToolRegistry) Get(name string) (ToolDefinition, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	tool, ok := tr.tools[name]
	return tool.def, ok
}

// List returns all registered tool definitions sorted by name.
func (tr *ToolRegistry) List() []ToolDefinition {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	tools := make([]ToolDefinition, 0, len(tr.tools))
	for _, tool := range tr.tools {
		tools = append(tools, tool.def)
	}
	slices.SortFunc(tools, func(a, b ToolDefinition) int {
		return strings.Compare(a.Name, b.Name)
	})
	return tools
}

// Validate checks raw JSON arguments against the tool's schema. Problems
// the model can fix come back as hints.
func (tr *ToolRegistry) Validate(name, rawArgs string) error {
	tr.mu.RLock()
	tool, ok := tr.tools[name]
	tr.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if tool.schema == nil {
		return nil
	}

	if strings.TrimSpace(rawArgs) == "" {
		rawArgs = "{}"
	}
	res, err := tool.schema.Validate(gojsonschema.NewStringLoader(rawArgs))
	if err != nil {
		return hint.New(fmt.Sprintf("Arguments of %s are not valid JSON: %v", name, err))
	}
	if res.Valid() {
		return nil
	}

	var problems []string
	for _, e := range res.Errors() {
		problems = append(problems, e.Field()+": "+e.Description())
	}
	return hint.New(fmt.Sprintf("Invalid arguments for %s: %s", name, strings.Join(problems, "; ")))
}

// Execute validates the arguments and runs the tool.
func (tr *ToolRegistry) Execute(ctx context.Context, sessionID string, call provider.ToolCall) (string, error) {
	if err := tr.Validate(call.Name, call.Args); err != nil {
		return "", err
	}

	tr.mu.RLock()
	executor := tr.tools[call.Name].exec
	tr.mu.RUnlock()

	if executor == nil {
		return "", fmt.Errorf("tool %q has no executor", call.Name)
	}
	return executor(ctx, sessionID, call)
}

// HasTool checks if a tool is registered.
func (tr *ToolRegistry) HasTool(name string) bool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	_, ok := tr.tools[name]
	return ok
}

// Count returns the number of registered tools.
func (tr *ToolRegistry) Count() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	return len(tr.tools)
}

// ProviderTools returns the tool definitions in the form providers offer
// them to models.
func (tr *ToolRegistry) ProviderTools() []provider.ToolDef {
	defs := tr.List()
	out := make([]provider.ToolDef, len(defs))
	for i, d := range defs {
		out[i] = provider.ToolDef{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
	}
	return out
}
