package agent

import "context"

// Tool represents a function the model can call during a support conversation.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema ToolSchema  `json:"input_schema"`
	Handler     ToolHandler `json:"-"`
}

// ToolSchema defines the JSON schema for tool input
type ToolSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Required   []string               `json:"required,omitempty"`
}

// ToolHandler is a function that executes a tool
type ToolHandler func(ctx context.Context, input map[string]interface{}) (*ToolResult, error)

// ToolResult represents the result of tool execution. IsError marks results
// the model should treat as failures; a degraded "database offline" reply is
// an error result but never a Go error, so the conversation keeps going.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}
