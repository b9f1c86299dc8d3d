package hook

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreToolUseStopsAtFirstBlock(t *testing.T) {
	e := NewEngine()
	var ran []string
	e.AddPreToolUse(func(_ context.Context, _ string, _ ToolCall) Decision {
		ran = append(ran, "first")
		return Allowed
	})
	e.AddPreToolUse(func(_ context.Context, _ string, _ ToolCall) Decision {
		ran = append(ran, "second")
		return Decision{Block: true, Reason: "nope"}
	})
	e.AddPreToolUse(func(_ context.Context, _ string, _ ToolCall) Decision {
		ran = append(ran, "third")
		return Allowed
	})

	d := e.RunPreToolUse(context.Background(), "s1", ToolCall{Name: "bash"})
	assert.True(t, d.Block)
	assert.Equal(t, "nope", d.Reason)
	assert.Equal(t, []string{"first", "second"}, ran)
}

func TestPostToolUseRunsAll(t *testing.T) {
	e := NewEngine()
	count := 0
	e.AddPostToolUse(func(_ context.Context, _ string, _ ToolCall, _ ToolResult) { count++ })
	e.AddPostToolUse(func(_ context.Context, _ string, _ ToolCall, _ ToolResult) { count++ })
	e.RunPostToolUse(context.Background(), "s1", ToolCall{Name: "bash"}, ToolResult{})
	assert.Equal(t, 2, count)
}

func TestDoomLoopDetectorTriggersOnThreshold(t *testing.T) {
	d := NewDoomLoopDetector()
	input := map[string]any{"command": "ls"}

	assert.False(t, d.Check("s1", "bash", input))
	assert.False(t, d.Check("s1", "bash", input))
	assert.True(t, d.Check("s1", "bash", input), "third identical call should trip the detector")
}

func TestDoomLoopDetectorResetsOnDifferentCall(t *testing.T) {
	d := NewDoomLoopDetector()
	d.Check("s1", "bash", map[string]any{"command": "ls"})
	d.Check("s1", "bash", map[string]any{"command": "ls"})
	assert.False(t, d.Check("s1", "bash", map[string]any{"command": "pwd"}))
}

func TestDoomLoopAsPreToolUseHookBlocks(t *testing.T) {
	d := NewDoomLoopDetector()
	h := d.AsPreToolUseHook()
	call := ToolCall{Name: "bash", Input: map[string]any{"command": "ls"}}

	h(context.Background(), "s1", call)
	h(context.Background(), "s1", call)
	decision := h(context.Background(), "s1", call)

	assert.True(t, decision.Block)
}

func TestDoomLoopSessionsAreIndependent(t *testing.T) {
	d := NewDoomLoopDetector()
	input := map[string]any{"command": "ls"}
	d.Check("s1", "bash", input)
	d.Check("s1", "bash", input)
	assert.False(t, d.Check("s2", "bash", input))
}
