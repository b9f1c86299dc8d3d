package agentloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/internal/permission"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// streamingClient yields a scripted sequence of StreamEvents for its one
// streaming turn, then answers any further Complete/CompleteStreaming
// call with a plain text end-turn response.
type streamingClient struct {
	first []llmclient.StreamEvent
	calls int
}

func (c *streamingClient) Complete(context.Context, llmclient.Request) (llmclient.Response, error) {
	return textResponse("done"), nil
}

func (c *streamingClient) CompleteStreaming(context.Context, llmclient.Request) (<-chan llmclient.StreamEvent, error) {
	c.calls++
	out := make(chan llmclient.StreamEvent, len(c.first))
	if c.calls == 1 {
		for _, ev := range c.first {
			out <- ev
		}
	} else {
		out <- llmclient.StreamEvent{Kind: llmclient.StreamDone, Final: &llmclient.Response{
			Message:    types.NewAssistantMessage("done"),
			StopReason: llmclient.StopEndTurn,
		}}
	}
	close(out)
	return out, nil
}

func TestExecuteStreamingAccumulatesToolInputDeltas(t *testing.T) {
	client := &streamingClient{first: []llmclient.StreamEvent{
		{Kind: llmclient.StreamTextDelta, TextDelta: "thinking..."},
		{Kind: llmclient.StreamToolUseStart, ToolUseID: "call-1", ToolName: "echo"},
		{Kind: llmclient.StreamToolUseInputDelta, ToolUseID: "call-1", InputDelta: `{"msg"`},
		{Kind: llmclient.StreamToolUseInputDelta, ToolUseID: "call-1", InputDelta: `:"hi"}`},
		{Kind: llmclient.StreamDone, Final: &llmclient.Response{
			Message: types.Message{Role: types.RoleAssistant, Content: []types.ContentBlock{
				types.NewToolUseBlock("call-1", "echo", nil),
			}},
			StopReason: llmclient.StopToolUse,
		}},
	}}

	policy := permission.NewPolicy()
	policy.AddAllowRule(permission.Rule{Tool: "echo"})
	loop := New("sess-1", "/tmp", client, AgentConfig{Executor: newTestRegistry(), Policy: policy})
	events, handle := loop.ExecuteStreaming(context.Background(), nil, "run echo")

	var seenTextDelta, seenToolStart bool
	for ev := range events {
		switch ev.Type {
		case event.TextDelta:
			seenTextDelta = true
		case event.ToolStart:
			seenToolStart = true
		}
	}

	result, err := handle.Wait()
	require.NoError(t, err)
	assert.True(t, seenTextDelta)
	assert.True(t, seenToolStart)
	assert.Equal(t, "done", result.FinalText)

	var toolMsg types.Message
	for _, m := range result.Messages {
		if m.Role == types.RoleTool {
			toolMsg = m
		}
	}
	require.Len(t, toolMsg.Content, 1)
	assert.Contains(t, toolMsg.Content[0].ToolResultText, "hi")
}

func TestExecuteStreamingHandleCancel(t *testing.T) {
	client := &streamingClient{first: []llmclient.StreamEvent{
		{Kind: llmclient.StreamDone, Final: &llmclient.Response{
			Message:    types.NewAssistantMessage("unused"),
			StopReason: llmclient.StopEndTurn,
		}},
	}}
	loop := New("sess-1", "/tmp", client, AgentConfig{Executor: newTestRegistry()})

	ctx, cancel := context.WithCancel(context.Background())
	events, handle := loop.ExecuteStreaming(ctx, nil, "hi")
	cancel()
	handle.Cancel()

	for range events {
	}
	_, err := handle.Wait()
	_ = err // either a clean finish (raced before cancel) or a cancellation error; both are valid teardown per spec.md §4.5.4
}
