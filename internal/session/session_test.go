package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/permission"
	"github.com/opencode-ai/agentcore/pkg/types"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(Config{ID: "sess-01", Workspace: "/tmp/work", MaxContextTokens: 1000})
	require.NoError(t, err)
	return s
}

func TestValidateIDRejectsLeadingDotAndEmpty(t *testing.T) {
	assert.Error(t, ValidateID(""))
	assert.Error(t, ValidateID(".hidden"))
	assert.NoError(t, ValidateID("sess-01_v2.x"))
}

func TestNewSessionStartsActiveWithMaxContextFloor(t *testing.T) {
	s, err := New(Config{ID: "sess-01"})
	require.NoError(t, err)
	assert.Equal(t, types.StateActive, s.State())
	assert.Equal(t, 1, s.ContextUsage().Max)
}

func TestAddMessageAndTouch(t *testing.T) {
	s := newTestSession(t)
	before := s.UpdatedAt()
	s.AddMessage(types.NewUserMessage("hello"))
	assert.Len(t, s.Messages(), 1)
	assert.False(t, s.UpdatedAt().Before(before))
}

func TestUpdateUsageRecomputesPercent(t *testing.T) {
	s := newTestSession(t)
	s.UpdateUsage(types.TokenUsage{Prompt: 400, Completion: 100, Total: 500})
	usage := s.ContextUsage()
	assert.Equal(t, 500, usage.Used)
	assert.InDelta(t, 0.5, usage.Percent, 0.0001)
	assert.Equal(t, 1, usage.Turns)
	assert.Equal(t, 500, s.TotalUsage().Total)
}

func TestClearResetsMessagesButKeepsCost(t *testing.T) {
	s := newTestSession(t)
	s.AddMessage(types.NewUserMessage("hi"))
	s.RecordCost(types.CostRecord{Label: "turn-1", CostUSD: 0.01})
	s.Clear()
	assert.Empty(t, s.Messages())
	assert.InDelta(t, 0.01, s.TotalCost(), 0.0001)
}

func TestPauseBlocksNewGeneration(t *testing.T) {
	s := newTestSession(t)
	s.Pause()
	assert.Equal(t, types.StatePaused, s.State())
	_, err := s.BeginGeneration(context.Background())
	assert.Error(t, err)

	s.Resume()
	ctx, err := s.BeginGeneration(context.Background())
	require.NoError(t, err)
	assert.NoError(t, ctx.Err())
}

func TestBeginGenerationAbortsPriorOne(t *testing.T) {
	s := newTestSession(t)
	first, err := s.BeginGeneration(context.Background())
	require.NoError(t, err)

	_, err = s.BeginGeneration(context.Background())
	require.NoError(t, err)

	assert.Error(t, first.Err())
}

func TestSetErrorAndSetCompleted(t *testing.T) {
	s := newTestSession(t)
	s.SetError(assert.AnError)
	assert.Equal(t, types.StateError, s.State())
	assert.Equal(t, assert.AnError, s.LastError())

	s.SetCompleted()
	assert.Equal(t, types.StateCompleted, s.State())
}

func TestCheckPermissionDelegatesToPolicy(t *testing.T) {
	s := newTestSession(t)
	s.AddDenyRule(permission.Rule{Tool: "bash"})
	assert.Equal(t, permission.Deny, s.CheckPermission("bash", map[string]any{"command": "rm -rf /"}))
	assert.Equal(t, permission.Ask, s.CheckPermission("read", map[string]any{"file_path": "a.go"}))
}

func TestSetPermissionPolicyReplacesWholesale(t *testing.T) {
	s := newTestSession(t)
	p := permission.NewPolicy()
	p.SetDefault(permission.Allow)
	s.SetPermissionPolicy(p)
	assert.Equal(t, permission.Allow, s.CheckPermission("anything", nil))
}

func TestTodoSinkRoundTrip(t *testing.T) {
	s := newTestSession(t)
	s.SetTodos([]types.Todo{{ID: "1", Content: "write tests", Status: types.TodoInProgress}})
	todos := s.GetTodos()
	require.Len(t, todos, 1)
	assert.Equal(t, "write tests", todos[0].Content)
}

func TestMemoryStoreRecallSearchClear(t *testing.T) {
	s := newTestSession(t)
	s.Remember("project.language", "go")
	v, ok := s.Recall("project.language")
	assert.True(t, ok)
	assert.Equal(t, "go", v)

	matches := s.SearchMemory("project")
	assert.Contains(t, matches, "project.language")

	s.ForgetAll()
	_, ok = s.Recall("project.language")
	assert.False(t, ok)
}

func TestSubscribeEventsReceivesBroadcast(t *testing.T) {
	s := newTestSession(t)
	received := make(chan event.Event, 1)
	unsub := s.SubscribeEvents(func(ev event.Event) { received <- ev })
	defer unsub()

	s.Broadcast(event.Event{Type: event.TurnStart, Data: event.TurnStartData{Turn: 1}})

	select {
	case ev := <-received:
		assert.Equal(t, event.TurnStart, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast event")
	}
}

func TestShareAndUnshare(t *testing.T) {
	s := newTestSession(t)
	token := s.Share()
	assert.NotEmpty(t, token)
	assert.Equal(t, token, s.Share())

	s.Unshare()
	assert.Empty(t, s.ShareToken())
}

func TestRevertAndUnrevert(t *testing.T) {
	s := newTestSession(t)
	s.Revert("msg-1")
	assert.Equal(t, "msg-1", s.RevertPoint())
	s.Unrevert()
	assert.Empty(t, s.RevertPoint())
}
