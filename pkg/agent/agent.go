package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "claude-3-5-sonnet-latest"

// Agent runs the tool-calling conversation loop on behalf of the voice
// bridge. The bridge hands it transcribed caller utterances and speaks the
// replies; this loop only deals in text and tool calls.
type Agent struct {
	client       *anthropic.Client
	tools        []ToolDefinition
	conversation []anthropic.MessageParam
	model        string
	schema       string
	logger       zerolog.Logger
}

// ToolDefinition is a tool in the shape the conversation loop consumes.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema anthropic.ToolInputSchemaParam
	Function    func(ctx context.Context, input json.RawMessage) (string, error)
}

// NewAgent creates an agent. schema is the schema qualifier the model should
// use for table references, passed through from configuration.
func NewAgent(apiKey, model, schema string, logger zerolog.Logger) (*Agent, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required (set ANTHROPIC_API_KEY environment variable)")
	}
	if model == "" {
		model = DefaultModel
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &Agent{
		client: &client,
		model:  model,
		schema: schema,
		logger: logger,
	}, nil
}

// AddTool adds a tool to the agent
func (a *Agent) AddTool(tool ToolDefinition) {
	a.tools = append(a.tools, tool)
}

// ClearConversation resets the conversation between calls.
func (a *Agent) ClearConversation() {
	a.conversation = nil
}

func (a *Agent) systemMessage() string {
	schemaNote := ""
	if a.schema != "" {
		schemaNote = fmt.Sprintf("\nTable references should be qualified with the %q schema unless a tool reports otherwise.\n", a.schema)
	}

	return fmt.Sprintf(`You are a customer-service assistant answering a phone call. Your replies are spoken aloud to the caller, so keep them short, warm and conversational: no lists, no SQL, no table dumps.

You can consult and update the customer database with the available tools:
- list_tables / describe_table: discover what data exists
- lookup_rows: run a read-only query with positional parameters
- record_row: record something for the caller (e.g. a callback request), subject to approval
%s
Rules:
1. Always bind caller-provided values as positional parameters, never paste them into SQL text.
2. If a tool reports the database is offline, apologize once and offer to follow up. Do not keep retrying.
3. Never read raw row data verbatim; summarize it in plain speech.
4. If a write is not approved, tell the caller it could not be recorded and move on.`, schemaNote)
}

// SendMessage sends one caller utterance through the tool-calling loop and
// returns the reply to speak.
func (a *Agent) SendMessage(ctx context.Context, userMessage string) (string, error) {
	a.conversation = append(a.conversation, anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)))

	systemMessage := a.systemMessage()

	for {
		message, err := a.runInference(ctx, a.conversation, systemMessage)
		if err != nil {
			return "", err
		}
		a.conversation = append(a.conversation, message.ToParam())

		var textResponse string
		toolResults := []anthropic.ContentBlockParamUnion{}

		for _, content := range message.Content {
			switch content.Type {
			case "text":
				textResponse += content.Text
			case "tool_use":
				a.logger.Debug().Str("tool", content.Name).Msg("model called tool")
				result := a.executeTool(ctx, content.ID, content.Name, content.Input)
				toolResults = append(toolResults, result)
			}
		}

		if len(toolResults) == 0 {
			return textResponse, nil
		}

		a.conversation = append(a.conversation, anthropic.NewUserMessage(toolResults...))
	}
}

// runInference makes the API call.
func (a *Agent) runInference(ctx context.Context, conversation []anthropic.MessageParam, systemMessage string) (*anthropic.Message, error) {
	anthropicTools := make([]anthropic.ToolUnionParam, len(a.tools))
	for i, tool := range a.tools {
		anthropicTools[i] = anthropic.ToolUnionParamOfTool(tool.InputSchema, tool.Name)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemMessage},
		},
		Messages: conversation,
	}

	if len(anthropicTools) > 0 {
		params.Tools = anthropicTools
	}

	return a.client.Messages.New(ctx, params)
}

// executeTool runs one tool call and wraps the outcome as a tool result block.
func (a *Agent) executeTool(ctx context.Context, id, name string, input json.RawMessage) anthropic.ContentBlockParamUnion {
	var toolDef ToolDefinition
	var found bool
	for _, tool := range a.tools {
		if tool.Name == name {
			toolDef = tool
			found = true
			break
		}
	}
	if !found {
		return toolResultBlock(id, "Tool not found", true)
	}

	response, err := toolDef.Function(ctx, input)
	if err != nil {
		return toolResultBlock(id, err.Error(), true)
	}
	return toolResultBlock(id, response, false)
}

func toolResultBlock(id, text string, isError bool) anthropic.ContentBlockParamUnion {
	return anthropic.ContentBlockParamUnion{
		OfToolResult: &anthropic.ToolResultBlockParam{
			ToolUseID: id,
			IsError:   anthropic.Bool(isError),
			Content: []anthropic.ToolResultBlockParamContentUnion{
				{OfText: &anthropic.TextBlockParam{Text: text}},
			},
		},
	}
}

// ConvertToolToDefinition adapts a registry Tool for the conversation loop.
func ConvertToolToDefinition(tool *Tool) ToolDefinition {
	return ToolDefinition{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: tool.InputSchema.Properties,
			Required:   tool.InputSchema.Required,
		},
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			var inputMap map[string]interface{}
			if err := json.Unmarshal(input, &inputMap); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}

			result, err := tool.Handler(ctx, inputMap)
			if err != nil {
				return "", err
			}
			if result.IsError {
				return "", fmt.Errorf("%s", result.Content)
			}
			return result.Content, nil
		},
	}
}
