// Package hook implements the agent loop's lifecycle hook chain:
// PreToolUse, PostToolUse, GenerateStart, and GenerateEnd, each a
// pluggable ordered list of handlers the loop runs at the matching
// point in its gated-execute pipeline.
package hook

import "context"

// ToolCall is the minimal view of a tool invocation a hook can inspect.
type ToolCall struct {
	ID    string
	Name  string
	Input any
}

// ToolResult is the outcome of a tool call a PostToolUse hook observes.
type ToolResult struct {
	Output   string
	ExitCode int
	IsError  bool
}

// Decision lets a PreToolUse hook short-circuit execution.
type Decision struct {
	// Block, if true, stops the call before permission/HITL/execution.
	Block bool
	// Reason is surfaced as the tool's error result and as a
	// PermissionDenied-shaped event when Block is true.
	Reason string
}

// Allowed is the zero-value pass-through Decision.
var Allowed = Decision{}

// PreToolUseHook runs before permission/HITL gating. Returning a blocking
// Decision stops the tool call immediately.
type PreToolUseHook func(ctx context.Context, sessionID string, call ToolCall) Decision

// PostToolUseHook runs after a tool finishes, observing its result.
type PostToolUseHook func(ctx context.Context, sessionID string, call ToolCall, result ToolResult)

// GenerateStartHook runs before each LLM call of a prompt's generation.
type GenerateStartHook func(ctx context.Context, sessionID string, prompt string)

// GenerateEndHook runs after each LLM call, successful or not.
type GenerateEndHook func(ctx context.Context, sessionID string, finalText string, err error)

// Engine holds the ordered hook chains the agent loop consults.
type Engine struct {
	preToolUse    []PreToolUseHook
	postToolUse   []PostToolUseHook
	generateStart []GenerateStartHook
	generateEnd   []GenerateEndHook
}

// NewEngine creates an empty hook engine.
func NewEngine() *Engine {
	return &Engine{}
}

// AddPreToolUse registers h to run, in order, before every tool call.
func (e *Engine) AddPreToolUse(h PreToolUseHook) { e.preToolUse = append(e.preToolUse, h) }

// AddPostToolUse registers h to run, in order, after every tool call.
func (e *Engine) AddPostToolUse(h PostToolUseHook) { e.postToolUse = append(e.postToolUse, h) }

// AddGenerateStart registers h to run before every LLM call (once per turn).
func (e *Engine) AddGenerateStart(h GenerateStartHook) {
	e.generateStart = append(e.generateStart, h)
}

// AddGenerateEnd registers h to run after every LLM call (once per turn).
func (e *Engine) AddGenerateEnd(h GenerateEndHook) { e.generateEnd = append(e.generateEnd, h) }

// RunPreToolUse runs the chain in order, stopping at and returning the
// first blocking Decision. Returns Allowed if no hook blocks.
func (e *Engine) RunPreToolUse(ctx context.Context, sessionID string, call ToolCall) Decision {
	for _, h := range e.preToolUse {
		if d := h(ctx, sessionID, call); d.Block {
			return d
		}
	}
	return Allowed
}

// RunPostToolUse runs every PostToolUse hook; they cannot block.
func (e *Engine) RunPostToolUse(ctx context.Context, sessionID string, call ToolCall, result ToolResult) {
	for _, h := range e.postToolUse {
		h(ctx, sessionID, call, result)
	}
}

// RunGenerateStart runs every GenerateStart hook.
func (e *Engine) RunGenerateStart(ctx context.Context, sessionID, prompt string) {
	for _, h := range e.generateStart {
		h(ctx, sessionID, prompt)
	}
}

// RunGenerateEnd runs every GenerateEnd hook.
func (e *Engine) RunGenerateEnd(ctx context.Context, sessionID, finalText string, err error) {
	for _, h := range e.generateEnd {
		h(ctx, sessionID, finalText, err)
	}
}
