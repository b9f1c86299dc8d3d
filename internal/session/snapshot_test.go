package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/pkg/types"
)

func TestToSessionDataRestoreFromDataRoundTrip(t *testing.T) {
	s := newTestSession(t)
	s.AddMessage(types.NewUserMessage("hi"))
	s.UpdateUsage(types.TokenUsage{Prompt: 10, Completion: 5, Total: 15})
	s.RecordCost(types.CostRecord{Label: "turn-1", CostUSD: 0.02})
	s.SetTodos([]types.Todo{{ID: "1", Content: "ship it", Status: types.TodoPending}})
	s.Remember("k", "v")
	s.SetLLMClient(&stubSummarizer{text: "unused"})

	data := s.ToSessionData()
	assert.Equal(t, "sess-01", data.ID)
	assert.Len(t, data.Messages, 1)

	restored, err := RestoreFromData(Config{Workspace: "/tmp/work", MaxContextTokens: 1000}, data)
	require.NoError(t, err)

	assert.Equal(t, s.ID(), restored.ID())
	assert.Len(t, restored.Messages(), 1)
	assert.Equal(t, 15, restored.TotalUsage().Total)
	assert.InDelta(t, 0.02, restored.TotalCost(), 0.0001)
	require.Len(t, restored.GetTodos(), 1)
	v, ok := restored.Recall("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	// the LLM client override is never persisted.
	assert.Nil(t, restored.LLMClient())
}
