package toolexec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencode-ai/agentcore/pkg/types"
)

const todoWriteDescription = `Replaces the structured task list for the current session.

Usage:
- Pass the full updated todo list, not a delta
- Exactly one todo should be in_progress at a time
- Mark todos completed immediately after finishing them, don't batch`

const todoReadDescription = `Returns the current structured task list for the session.`

// TodoSink is the narrow interface the Session implements so the todo
// tools can read and write its todo list without toolexec importing
// the session package.
type TodoSink interface {
	SetTodos(sessionID string, todos []types.Todo)
	GetTodos(sessionID string) []types.Todo
}

// TodoWriteTool replaces a session's todo list.
type TodoWriteTool struct{ sink TodoSink }

type todoWriteInput struct {
	Todos []types.Todo `json:"todos"`
}

func NewTodoWriteTool(sink TodoSink) *TodoWriteTool { return &TodoWriteTool{sink: sink} }

func (t *TodoWriteTool) ID() string          { return "todowrite" }
func (t *TodoWriteTool) Description() string { return todoWriteDescription }

func (t *TodoWriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"todos": {
				"type": "array",
				"description": "The updated todo list",
				"items": {
					"type": "object",
					"properties": {
						"id": {"type": "string"},
						"content": {"type": "string"},
						"status": {"type": "string", "description": "pending, in_progress, or completed"},
						"priority": {"type": "string", "description": "high, medium, or low"}
					},
					"required": ["id", "content", "status"]
				}
			}
		},
		"required": ["todos"]
	}`)
}

func (t *TodoWriteTool) Execute(_ context.Context, args json.RawMessage, toolCtx *Context) (Result, error) {
	var params todoWriteInput
	if err := json.Unmarshal(args, &params); err != nil {
		return errResult(fmt.Errorf("invalid input: %w", err))
	}
	if toolCtx == nil || toolCtx.SessionID == "" {
		return errResult(fmt.Errorf("todowrite requires a session"))
	}

	t.sink.SetTodos(toolCtx.SessionID, params.Todos)

	nonCompleted := 0
	for _, todo := range params.Todos {
		if todo.Status != types.TodoCompleted {
			nonCompleted++
		}
	}
	output, _ := json.MarshalIndent(params.Todos, "", "  ")
	meta, _ := json.Marshal(map[string]any{"todos": params.Todos, "pending": nonCompleted})
	return Result{Output: string(output), Metadata: meta}, nil
}

// TodoReadTool returns a session's current todo list.
type TodoReadTool struct{ sink TodoSink }

func NewTodoReadTool(sink TodoSink) *TodoReadTool { return &TodoReadTool{sink: sink} }

func (t *TodoReadTool) ID() string          { return "todoread" }
func (t *TodoReadTool) Description() string { return todoReadDescription }

func (t *TodoReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *TodoReadTool) Execute(_ context.Context, _ json.RawMessage, toolCtx *Context) (Result, error) {
	if toolCtx == nil || toolCtx.SessionID == "" {
		return errResult(fmt.Errorf("todoread requires a session"))
	}
	todos := t.sink.GetTodos(toolCtx.SessionID)
	output, _ := json.MarshalIndent(todos, "", "  ")
	meta, _ := json.Marshal(map[string]any{"count": len(todos)})
	return Result{Output: string(output), Metadata: meta}, nil
}
