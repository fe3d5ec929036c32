package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/voicedesk/voicedesk/pkg/db"
	"github.com/voicedesk/voicedesk/pkg/display"
)

// toolTableWidth bounds tables handed back to the model. Tool results are
// read by the model, not a terminal, so the width is fixed.
const toolTableWidth = 120

const offlineMessage = "The customer database is offline right now. Apologize to the caller and offer to follow up, do not retry immediately."

// CreateSchemaTools creates the schema inspection tools for the model.
func CreateSchemaTools(database db.Database) []*Tool {
	return []*Tool{
		createListTablesTool(database),
		createDescribeTableTool(database),
	}
}

// CreateDataTools creates the lookup/write tools. approve gates every write;
// the excluded orchestration layer supplies the approval policy.
func CreateDataTools(database db.Database, approve func(string) bool) []*Tool {
	return []*Tool{
		createLookupTool(database),
		createRecordTool(database, approve),
	}
}

// withHandle acquires the connection handle and runs fn against it. An
// unavailable database degrades this single tool call; it never errors the
// conversation loop. Transport-shaped query failures invalidate the cached
// handle so the next call reconnects from scratch.
func withHandle(ctx context.Context, database db.Database, fn func(h *db.Handle) (*ToolResult, error)) (*ToolResult, error) {
	h, err := database.Get(ctx)
	if err != nil {
		return &ToolResult{Content: offlineMessage, IsError: true}, nil
	}
	result, err := fn(h)
	if err != nil {
		if db.ShouldInvalidate(err) {
			database.Invalidate()
		}
		return &ToolResult{
			Content: fmt.Sprintf("Database operation failed: %v", err),
			IsError: true,
		}, nil
	}
	return result, nil
}

// createListTablesTool lists tables and views the bot can query.
func createListTablesTool(database db.Database) *Tool {
	return &Tool{
		Name:        "list_tables",
		Description: "Lists all tables and views in the customer database with their schemas and types",
		InputSchema: ToolSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
			Required:   []string{},
		},
		Handler: func(ctx context.Context, input map[string]interface{}) (*ToolResult, error) {
			return withHandle(ctx, database, func(h *db.Handle) (*ToolResult, error) {
				tables, err := database.ListTables(ctx, h)
				if err != nil {
					return nil, err
				}
				if len(tables) == 0 {
					return &ToolResult{Content: "No tables found in the database."}, nil
				}

				var result strings.Builder
				result.WriteString("Tables and views:\n")
				for _, table := range tables {
					result.WriteString(fmt.Sprintf("- %s.%s (%s)\n", table.Schema, table.Name, table.Type))
				}
				return &ToolResult{Content: result.String()}, nil
			})
		},
	}
}

// createDescribeTableTool describes one table's columns.
func createDescribeTableTool(database db.Database) *Tool {
	return &Tool{
		Name:        "describe_table",
		Description: "Gets column names, types and nullability for a specific table",
		InputSchema: ToolSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"table_name": map[string]interface{}{
					"type":        "string",
					"description": "Table to describe. May include a schema qualifier (e.g. 'support.tickets' or just 'tickets')",
				},
			},
			Required: []string{"table_name"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}) (*ToolResult, error) {
			tableName, ok := input["table_name"].(string)
			if !ok || tableName == "" {
				return &ToolResult{Content: "Error: table_name must be a non-empty string", IsError: true},
					fmt.Errorf("invalid table_name parameter")
			}

			schema := "public"
			if parts := strings.SplitN(tableName, ".", 2); len(parts) == 2 {
				schema, tableName = parts[0], parts[1]
			}

			return withHandle(ctx, database, func(h *db.Handle) (*ToolResult, error) {
				table, err := database.DescribeTable(ctx, h, schema, tableName)
				if err != nil {
					return nil, err
				}

				var result strings.Builder
				result.WriteString(fmt.Sprintf("Table %s.%s:\n", table.Schema, table.Name))
				for _, col := range table.Columns {
					nullable := "NOT NULL"
					if col.IsNullable {
						nullable = "NULL"
					}
					result.WriteString(fmt.Sprintf("- %s %s %s\n", col.Name, col.DataType, nullable))
				}
				return &ToolResult{Content: result.String()}, nil
			})
		},
	}
}

// createLookupTool runs read-only queries with positional parameters.
func createLookupTool(database db.Database) *Tool {
	return &Tool{
		Name:        "lookup_rows",
		Description: "Runs a read-only SQL query (SELECT) against the customer database. Use positional placeholders ($1, $2, ...) and pass the values in params, never inline caller data into the SQL text.",
		InputSchema: ToolSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"sql": map[string]interface{}{
					"type":        "string",
					"description": "The SELECT statement with $N placeholders",
				},
				"params": map[string]interface{}{
					"type":        "array",
					"description": "Positional parameter values, in placeholder order",
				},
			},
			Required: []string{"sql"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}) (*ToolResult, error) {
			sqlText, ok := input["sql"].(string)
			if !ok {
				return &ToolResult{Content: "Error: sql must be a string", IsError: true},
					fmt.Errorf("invalid sql parameter")
			}
			if err := requireReadOnly(sqlText); err != nil {
				return &ToolResult{Content: err.Error(), IsError: true}, nil
			}

			return withHandle(ctx, database, func(h *db.Handle) (*ToolResult, error) {
				rs, err := database.Execute(ctx, h, sqlText, extractParams(input))
				if err != nil {
					return nil, err
				}
				return &ToolResult{Content: display.RenderRowSet(rs, toolTableWidth)}, nil
			})
		},
	}
}

// createRecordTool runs write statements behind the approval hook.
func createRecordTool(database db.Database, approve func(string) bool) *Tool {
	return &Tool{
		Name:        "record_row",
		Description: "Writes a row to the customer database (INSERT or UPDATE), for example to log a callback request. Use positional placeholders ($1, $2, ...) and pass the values in params. The operator must approve the write before it runs.",
		InputSchema: ToolSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"sql": map[string]interface{}{
					"type":        "string",
					"description": "The INSERT or UPDATE statement with $N placeholders",
				},
				"params": map[string]interface{}{
					"type":        "array",
					"description": "Positional parameter values, in placeholder order",
				},
				"summary": map[string]interface{}{
					"type":        "string",
					"description": "One sentence describing what is being recorded",
				},
			},
			Required: []string{"sql", "summary"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}) (*ToolResult, error) {
			sqlText, ok := input["sql"].(string)
			if !ok {
				return &ToolResult{Content: "Error: sql must be a string", IsError: true},
					fmt.Errorf("invalid sql parameter")
			}
			if err := requireWrite(sqlText); err != nil {
				return &ToolResult{Content: err.Error(), IsError: true}, nil
			}

			summary, _ := input["summary"].(string)
			params := extractParams(input)
			if approve != nil && !approve(fmt.Sprintf("%s\n\nSQL:\n%s\nParams: %v", summary, sqlText, params)) {
				return &ToolResult{Content: "The write was not approved. Tell the caller the request could not be recorded."}, nil
			}

			return withHandle(ctx, database, func(h *db.Handle) (*ToolResult, error) {
				rs, err := database.Execute(ctx, h, sqlText, params)
				if err != nil {
					return nil, err
				}
				return &ToolResult{Content: fmt.Sprintf("Recorded successfully (%s)", rs.CommandTag)}, nil
			})
		},
	}
}

// extractParams pulls the positional parameter array out of tool input.
func extractParams(input map[string]interface{}) []any {
	raw, ok := input["params"].([]interface{})
	if !ok {
		return nil
	}
	params := make([]any, len(raw))
	copy(params, raw)
	return params
}

// requireReadOnly rejects anything but a single SELECT-shaped statement.
func requireReadOnly(sqlText string) error {
	trimmed := strings.ToUpper(strings.TrimSpace(sqlText))
	if trimmed == "" {
		return fmt.Errorf("empty SQL statement")
	}
	if strings.Contains(strings.TrimRight(strings.TrimSpace(sqlText), ";"), ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}
	for _, prefix := range []string{"SELECT", "WITH", "VALUES"} {
		if strings.HasPrefix(trimmed, prefix) {
			return nil
		}
	}
	return fmt.Errorf("lookup_rows only accepts read-only statements (SELECT, WITH, VALUES)")
}

// requireWrite rejects anything but a single INSERT or UPDATE.
func requireWrite(sqlText string) error {
	trimmed := strings.ToUpper(strings.TrimSpace(sqlText))
	if trimmed == "" {
		return fmt.Errorf("empty SQL statement")
	}
	if strings.Contains(strings.TrimRight(strings.TrimSpace(sqlText), ";"), ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}
	for _, prefix := range []string{"INSERT", "UPDATE"} {
		if strings.HasPrefix(trimmed, prefix) {
			return nil
		}
	}
	return fmt.Errorf("record_row only accepts INSERT or UPDATE statements")
}
