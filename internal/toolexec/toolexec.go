// Package toolexec implements the ToolExecutor contract the Agent Loop
// calls once a tool call has cleared the safety pipeline, plus the
// built-in reference tools (read/write/edit/bash/glob/grep/ls/webfetch/
// todo).
package toolexec

import (
	"context"
	"encoding/json"
)

// Context carries per-call execution context into a Tool: the session
// and tool-call identifiers an event or metadata callback needs, the
// working directory tool paths resolve relative to, and a cancellation
// channel a long-running tool should select on.
type Context struct {
	SessionID string
	ToolID    string
	WorkDir   string
	AbortCh   <-chan struct{}
}

// IsAborted reports whether the call has been cancelled.
func (c *Context) IsAborted() bool {
	if c == nil || c.AbortCh == nil {
		return false
	}
	select {
	case <-c.AbortCh:
		return true
	default:
		return false
	}
}

// Result is a tool's raw return value before the loop turns it into a
// tool_result message: output text, an exit code (0 means success, any
// other value is fed back to the model as an error), and an optional
// metadata side channel — including the _load_skill directive
// internal/skill knows how to parse.
type Result struct {
	Output   string
	ExitCode int
	Metadata json.RawMessage
}

// Tool is one named, invokable capability. ID is the name the model and
// the permission/skill gates match against.
type Tool interface {
	ID() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage, toolCtx *Context) (Result, error)
}

// Executor is the contract the Agent Loop's gated_execute pipeline
// consumes (spec.md §6): execute(name, args_json, ctx) → (output_text,
// exit_code, metadata_json?) | Err.
type Executor interface {
	Execute(ctx context.Context, name string, args json.RawMessage, toolCtx *Context) (Result, error)
}

// errResult is the Result returned for a call the executor itself
// rejects (unknown tool, bad input) before a Tool ever runs: exit code
// 1 with the error text as output, matching how a failed tool's own
// Execute is turned into an error tool_result by the loop.
func errResult(err error) (Result, error) {
	return Result{Output: "Error: " + err.Error(), ExitCode: 1}, err
}
