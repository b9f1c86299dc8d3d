// Package llmclient is the LLM contract the Agent Loop calls against:
// complete/complete_streaming yielding text deltas, tool-call requests, and
// a terminal usage/stop-reason record. Concrete adapters live alongside
// this file (anthropic.go talks to the Anthropic API directly, eino.go
// wraps any eino ToolCallingChatModel for the rest of the provider
// landscape), and registry.go resolves a "provider/model" string to a
// Client the way the caller names a model.
package llmclient

import (
	"context"
	"encoding/json"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// ToolSchema is one tool definition offered to the model: a name, a
// description, and a JSON-Schema object describing its parameters.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Request is one turn's worth of input to an LLM: the conversation so
// far, an optional system prompt, and the tools currently on offer.
type Request struct {
	Messages    []types.Message
	System      string
	Tools       []ToolSchema
	MaxTokens   int
	Temperature float64
}

// StopReason classifies why a completion ended.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopError     StopReason = "error"
)

// Response is a completed, non-streaming turn.
type Response struct {
	Message    types.Message
	Usage      types.TokenUsage
	StopReason StopReason
}

// StreamEventKind discriminates the StreamEvent tagged union.
type StreamEventKind string

const (
	StreamTextDelta         StreamEventKind = "text_delta"
	StreamToolUseStart      StreamEventKind = "tool_use_start"
	StreamToolUseInputDelta StreamEventKind = "tool_use_input_delta"
	StreamDone              StreamEventKind = "done"
	StreamError             StreamEventKind = "error"
)

// StreamEvent is one increment of a streaming completion: a text delta, a
// tool-use start/input-delta pair, or the terminal Done/Error event. Only
// the fields relevant to Kind are populated.
type StreamEvent struct {
	Kind StreamEventKind

	TextDelta string

	ToolUseID  string
	ToolName   string
	InputDelta string

	Final *Response
	Err   error
}

// Client is the complete/complete_streaming LLM contract. Implementations
// must treat ctx cancellation as an abort: a cancelled Complete/
// CompleteStreaming call returns promptly with ctx.Err() rather than
// blocking until the underlying HTTP request times out.
type Client interface {
	// Complete runs one non-streaming turn.
	Complete(ctx context.Context, req Request) (Response, error)

	// CompleteStreaming runs one turn, delivering StreamEvents on the
	// returned channel. The channel is closed after exactly one terminal
	// StreamDone or StreamError event.
	CompleteStreaming(ctx context.Context, req Request) (<-chan StreamEvent, error)
}
