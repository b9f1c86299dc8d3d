package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
)

const taskDescription = `Launches a subagent to autonomously handle a task in an isolated child session.

Usage:
- description: a short label for the subtask, surfaced in subagent lifecycle events
- prompt: the full task for the subagent to carry out
- Use for self-contained work that doesn't need to share this session's conversation state`

// TaskExecutor is the narrow interface the Session Manager implements so
// the task tool can spawn a child session and run it to completion
// without toolexec importing sessionmgr, mirroring the TodoSink pattern.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, parentSessionID, description, prompt string) (output, childSessionID string, err error)
}

// TaskTool runs a subtask in a fresh child session (spec.md §4.6's
// create_child_session, exposed to the model as a callable tool), grounded
// on the teacher's tool.TaskExecutor/SubagentExecutor split.
type TaskTool struct{ exec TaskExecutor }

func NewTaskTool(exec TaskExecutor) *TaskTool { return &TaskTool{exec: exec} }

func (t *TaskTool) ID() string          { return "task" }
func (t *TaskTool) Description() string { return taskDescription }

func (t *TaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"description": {"type": "string", "description": "short label for the subtask"},
			"prompt": {"type": "string", "description": "the task for the subagent to carry out"}
		},
		"required": ["description", "prompt"]
	}`)
}

type taskInput struct {
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

func (t *TaskTool) Execute(ctx context.Context, args json.RawMessage, toolCtx *Context) (Result, error) {
	var params taskInput
	if err := json.Unmarshal(args, &params); err != nil {
		return errResult(fmt.Errorf("invalid input: %w", err))
	}
	if toolCtx == nil || toolCtx.SessionID == "" {
		return errResult(fmt.Errorf("task requires a session"))
	}
	if params.Prompt == "" {
		return errResult(fmt.Errorf("task requires a prompt"))
	}

	output, childID, err := t.exec.ExecuteTask(ctx, toolCtx.SessionID, params.Description, params.Prompt)
	if err != nil {
		return errResult(err)
	}

	meta, _ := json.Marshal(map[string]any{"child_session_id": childID})
	return Result{Output: output, Metadata: meta}, nil
}
