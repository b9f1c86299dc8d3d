package agentloop

import (
	"context"
	"encoding/json"
	"testing"

	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/hitl"
	"github.com/opencode-ai/agentcore/internal/hook"
	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/internal/permission"
	"github.com/opencode-ai/agentcore/internal/toolexec"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// scriptedClient replays a fixed sequence of Responses, one per Complete
// call, so a test can script an exact multi-turn conversation.
type scriptedClient struct {
	responses []llmclient.Response
	calls     int
}

func (c *scriptedClient) Complete(_ context.Context, _ llmclient.Request) (llmclient.Response, error) {
	r := c.responses[c.calls]
	c.calls++
	return r, nil
}

func (c *scriptedClient) CompleteStreaming(context.Context, llmclient.Request) (<-chan llmclient.StreamEvent, error) {
	panic("not used in these tests")
}

func toolUseResponse(id, name string, input any) llmclient.Response {
	raw, _ := json.Marshal(input)
	return llmclient.Response{
		Message: types.Message{Role: types.RoleAssistant, Content: []types.ContentBlock{
			types.NewToolUseBlock(id, name, raw),
		}},
		Usage:      types.TokenUsage{Total: 10},
		StopReason: llmclient.StopToolUse,
	}
}

func textResponse(text string) llmclient.Response {
	return llmclient.Response{
		Message:    types.NewAssistantMessage(text),
		Usage:      types.TokenUsage{Total: 5},
		StopReason: llmclient.StopEndTurn,
	}
}

type echoTool struct{ id string }

func (t *echoTool) ID() string                  { return t.id }
func (t *echoTool) Description() string         { return "echoes its input" }
func (t *echoTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (t *echoTool) Execute(_ context.Context, args json.RawMessage, _ *toolexec.Context) (toolexec.Result, error) {
	return toolexec.Result{Output: string(args), ExitCode: 0}, nil
}

func newTestRegistry() *toolexec.Registry {
	r := toolexec.NewRegistry()
	r.Register(&echoTool{id: "echo"})
	return r
}

func TestExecuteNoToolCallsReturnsTextImmediately(t *testing.T) {
	client := &scriptedClient{responses: []llmclient.Response{textResponse("hello there")}}
	var events []event.Event
	loop := New("sess-1", "/tmp", client, AgentConfig{Emit: func(ev event.Event) { events = append(events, ev) }})

	result, err := loop.Execute(context.Background(), nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.FinalText)
	assert.Equal(t, 0, result.ToolCallsCount)
	assert.Equal(t, event.Start, events[0].Type)
	assert.Equal(t, event.End, events[len(events)-1].Type)
}

func TestExecuteRunsToolThenFinishes(t *testing.T) {
	client := &scriptedClient{responses: []llmclient.Response{
		toolUseResponse("call-1", "echo", map[string]any{"msg": "hi"}),
		textResponse("done"),
	}}
	policy := permission.NewPolicy()
	policy.AddAllowRule(permission.Rule{Tool: "echo"})
	loop := New("sess-1", "/tmp", client, AgentConfig{Executor: newTestRegistry(), Policy: policy})

	result, err := loop.Execute(context.Background(), nil, "run echo")
	require.NoError(t, err)
	assert.Equal(t, "done", result.FinalText)
	assert.Equal(t, 1, result.ToolCallsCount)

	var toolMsg types.Message
	for _, m := range result.Messages {
		if m.Role == types.RoleTool {
			toolMsg = m
		}
	}
	require.Len(t, toolMsg.Content, 1)
	assert.False(t, toolMsg.Content[0].IsError)
}

func TestExecuteDeniesToolPerPolicy(t *testing.T) {
	client := &scriptedClient{responses: []llmclient.Response{
		toolUseResponse("call-1", "echo", map[string]any{}),
		textResponse("done"),
	}}
	policy := permission.NewPolicy()
	policy.AddDenyRule(permission.Rule{Tool: "echo"})

	var events []event.Event
	loop := New("sess-1", "/tmp", client, AgentConfig{
		Executor: newTestRegistry(),
		Policy:   policy,
		Emit:     func(ev event.Event) { events = append(events, ev) },
	})

	_, err := loop.Execute(context.Background(), nil, "run echo")
	require.NoError(t, err)

	found := false
	for _, ev := range events {
		if ev.Type == event.PermissionDenied {
			found = true
		}
	}
	assert.True(t, found, "expected a PermissionDenied event")
}

func TestExecuteBlockedByPreToolUseHook(t *testing.T) {
	client := &scriptedClient{responses: []llmclient.Response{
		toolUseResponse("call-1", "echo", map[string]any{}),
		textResponse("done"),
	}}
	engine := hook.NewEngine()
	engine.AddPreToolUse(func(context.Context, string, hook.ToolCall) hook.Decision {
		return hook.Decision{Block: true, Reason: "not allowed here"}
	})

	loop := New("sess-1", "/tmp", client, AgentConfig{Executor: newTestRegistry(), Hooks: engine})
	result, err := loop.Execute(context.Background(), nil, "run echo")
	require.NoError(t, err)

	var toolMsg types.Message
	for _, m := range result.Messages {
		if m.Role == types.RoleTool {
			toolMsg = m
		}
	}
	require.Len(t, toolMsg.Content, 1)
	assert.True(t, toolMsg.Content[0].IsError)
	assert.Contains(t, toolMsg.Content[0].ToolResultText, "blocked by hook")
}

func TestExecuteWithHITLApproval(t *testing.T) {
	client := &scriptedClient{responses: []llmclient.Response{
		toolUseResponse("call-1", "echo", map[string]any{}),
		textResponse("done"),
	}}
	cfg := hitl.DefaultConfig()
	cfg.RequireConfirmTools = map[string]bool{"echo": true}
	bus := event.NewBus()
	defer bus.Close()
	confirmation := hitl.NewManager(cfg, bus)

	loop := New("sess-1", "/tmp", client, AgentConfig{Executor: newTestRegistry(), Confirmation: confirmation})

	done := make(chan struct{})
	go func() {
		defer close(done)
		result, err := loop.Execute(context.Background(), nil, "run echo")
		require.NoError(t, err)
		assert.Equal(t, "done", result.FinalText)
	}()

	// approve as soon as the request shows up.
	require.Eventually(t, func() bool { return confirmation.PendingCount() > 0 }, time.Second, time.Millisecond)
	confirmation.Confirm("call-1", true, "")
	<-done
}

func TestExecuteMaxToolRoundsExceeded(t *testing.T) {
	responses := make([]llmclient.Response, 0, 5)
	for i := 0; i < 5; i++ {
		responses = append(responses, toolUseResponse("call", "echo", map[string]any{}))
	}
	client := &scriptedClient{responses: responses}
	loop := New("sess-1", "/tmp", client, AgentConfig{Executor: newTestRegistry(), MaxToolRounds: 2})

	_, err := loop.Execute(context.Background(), nil, "loop forever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max tool rounds")
}

func TestParseToolArgsReportsParseError(t *testing.T) {
	args := parseToolArgs(json.RawMessage(`{not json`))
	errText, ok := args["__parse_error"].(string)
	assert.True(t, ok)
	assert.NotEmpty(t, errText)
}
