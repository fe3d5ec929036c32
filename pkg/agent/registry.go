package agent

import (
	"context"
	"fmt"
	"sync"
)

// ToolRegistry manages the tools exposed to the model.
type ToolRegistry struct {
	tools map[string]*Tool
	order []string
	mutex sync.RWMutex
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool. Registration order is preserved so the model sees a
// stable tool list.
func (tr *ToolRegistry) Register(tool *Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	if _, exists := tr.tools[tool.Name]; !exists {
		tr.order = append(tr.order, tool.Name)
	}
	tr.tools[tool.Name] = tool
	return nil
}

// Get retrieves a tool by name.
func (tr *ToolRegistry) Get(name string) (*Tool, bool) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	tool, exists := tr.tools[name]
	return tool, exists
}

// All returns the registered tools in registration order.
func (tr *ToolRegistry) All() []*Tool {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	tools := make([]*Tool, 0, len(tr.order))
	for _, name := range tr.order {
		tools = append(tools, tr.tools[name])
	}
	return tools
}

// Names returns the registered tool names in registration order.
func (tr *ToolRegistry) Names() []string {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	names := make([]string, len(tr.order))
	copy(names, tr.order)
	return names
}

// Execute runs a tool by name with the given input.
func (tr *ToolRegistry) Execute(ctx context.Context, name string, input map[string]interface{}) (*ToolResult, error) {
	tool, exists := tr.Get(name)
	if !exists {
		return &ToolResult{
			Content: fmt.Sprintf("Tool '%s' not found", name),
			IsError: true,
		}, fmt.Errorf("tool '%s' not found", name)
	}
	return tool.Handler(ctx, input)
}
