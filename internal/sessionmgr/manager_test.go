package sessionmgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/internal/hitl"
	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/internal/queue"
	"github.com/opencode-ai/agentcore/internal/session"
	"github.com/opencode-ai/agentcore/internal/store"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// scriptedClient replays a fixed sequence of Responses, one per Complete
// call, mirroring the Agent Loop package's own test double.
type scriptedClient struct {
	responses []llmclient.Response
	calls     int
}

func (c *scriptedClient) Complete(_ context.Context, _ llmclient.Request) (llmclient.Response, error) {
	r := c.responses[c.calls%len(c.responses)]
	c.calls++
	return r, nil
}

func (c *scriptedClient) CompleteStreaming(context.Context, llmclient.Request) (<-chan llmclient.StreamEvent, error) {
	panic("not used in these tests")
}

func textResponse(text string) llmclient.Response {
	return llmclient.Response{Message: types.NewAssistantMessage(text), StopReason: llmclient.StopEndTurn}
}

func newTestManager(t *testing.T, st store.SessionStore) *Manager {
	t.Helper()
	return New(Config{
		Store:              st,
		DefaultLLM:         &scriptedClient{responses: []llmclient.Response{textResponse("ok")}},
		WorkDir:            t.TempDir(),
		DefaultQueueConfig: queue.DefaultConfig(),
	})
}

func TestCreateGetDestroySession(t *testing.T) {
	m := newTestManager(t, store.NewMemoryStore())
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, session.Config{ID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID())

	got, err := m.GetSession("s1")
	require.NoError(t, err)
	assert.Same(t, sess, got)

	assert.Contains(t, m.ListSessions(), "s1")

	require.NoError(t, m.DestroySession(ctx, "s1"))
	_, err = m.GetSession("s1")
	assert.Error(t, err)
}

func TestDestroySessionUnknownErrors(t *testing.T) {
	m := newTestManager(t, nil)
	err := m.DestroySession(context.Background(), "missing")
	assert.Error(t, err)
}

func TestGenerateAppendsMessagesAndUsage(t *testing.T) {
	m := newTestManager(t, store.NewMemoryStore())
	ctx := context.Background()

	_, err := m.CreateSession(ctx, session.Config{ID: "s1"})
	require.NoError(t, err)

	result, err := m.Generate(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", result.FinalText)

	sess, err := m.GetSession("s1")
	require.NoError(t, err)
	assert.Len(t, sess.Messages(), 2) // user prompt + assistant reply
	assert.Equal(t, 1, sess.ContextUsage().Turns)
}

func TestGenerateRejectsPausedSession(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, session.Config{ID: "s1"})
	require.NoError(t, err)
	sess.Pause()

	_, err = m.Generate(ctx, "s1", "hello")
	assert.Error(t, err)
}

func TestGenerateUnknownSession(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.Generate(context.Background(), "nope", "hi")
	assert.Error(t, err)
}

func TestGenerateNoLLMConfigured(t *testing.T) {
	m := New(Config{WorkDir: t.TempDir()})
	ctx := context.Background()
	_, err := m.CreateSession(ctx, session.Config{ID: "s1"})
	require.NoError(t, err)

	_, err = m.Generate(ctx, "s1", "hello")
	assert.Error(t, err)
}

func TestForkSessionCopiesStateAndSetsParent(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	source, err := m.CreateSession(ctx, session.Config{ID: "src", SystemPrompt: "be helpful"})
	require.NoError(t, err)
	source.AddMessage(types.NewUserMessage("hi"))
	source.UpdateUsage(types.TokenUsage{Total: 10})

	fork, err := m.ForkSession(ctx, "src", "fork1")
	require.NoError(t, err)

	require.NotNil(t, fork.ParentID())
	assert.Equal(t, "src", *fork.ParentID())
	assert.Equal(t, source.Messages(), fork.Messages())
	assert.Equal(t, source.TotalUsage(), fork.TotalUsage())
	assert.Equal(t, types.StateActive, fork.State())
}

func TestForkSessionUnknownSource(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.ForkSession(context.Background(), "missing", "fork1")
	assert.Error(t, err)
}

func TestCreateChildSessionInheritsFromParent(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	parent, err := m.CreateSession(ctx, session.Config{ID: "parent"})
	require.NoError(t, err)
	parentLLM := &scriptedClient{responses: []llmclient.Response{textResponse("parent answer")}}
	parent.SetLLMClient(parentLLM)

	child, err := m.CreateChildSession(ctx, "parent", "child1", session.Config{})
	require.NoError(t, err)

	require.NotNil(t, child.ParentID())
	assert.Equal(t, "parent", *child.ParentID())
	assert.Equal(t, parent.Workspace(), child.Workspace())
	assert.Same(t, parentLLM, child.LLMClient())
	assert.True(t, m.IsChildSession("child1"))

	children := m.GetChildSessions("parent")
	require.Len(t, children, 1)
	assert.Equal(t, "child1", children[0].ID())
}

func TestExecuteTaskRunsChildToCompletionAndCleansUp(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	parent, err := m.CreateSession(ctx, session.Config{ID: "parent"})
	require.NoError(t, err)
	parent.SetLLMClient(&scriptedClient{responses: []llmclient.Response{textResponse("subagent result")}})

	output, childID, err := m.ExecuteTask(ctx, "parent", "investigate", "look into it")
	require.NoError(t, err)
	assert.Equal(t, "subagent result", output)
	assert.NotEmpty(t, childID)

	_, err = m.GetSession(childID)
	assert.Error(t, err, "child session should be torn down after the task completes")
}

func TestExecuteTaskUnknownParent(t *testing.T) {
	m := newTestManager(t, nil)
	_, _, err := m.ExecuteTask(context.Background(), "missing", "d", "p")
	assert.Error(t, err)
}

func TestGenerateTitleSummarizesFirstMessages(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, session.Config{ID: "s1"})
	require.NoError(t, err)
	sess.SetLLMClient(&scriptedClient{responses: []llmclient.Response{textResponse("Fix login bug")}})
	sess.AddMessage(types.NewUserMessage("the login page is broken"))

	title, err := m.GenerateTitle(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Fix login bug", title)
}

func TestGenerateTitleEmptyWithNoMessages(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	_, err := m.CreateSession(ctx, session.Config{ID: "s1"})
	require.NoError(t, err)

	title, err := m.GenerateTitle(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, title)
}

func TestLoadAllSessionsRehydratesFromStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	seed := newTestManager(t, st)
	sess, err := seed.CreateSession(ctx, session.Config{ID: "s1"})
	require.NoError(t, err)
	sess.AddMessage(types.NewUserMessage("hello"))
	seed.persistBestEffort(ctx, sess)

	fresh := newTestManager(t, st)
	require.NoError(t, fresh.LoadAllSessions(ctx))

	restored, err := fresh.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, sess.Messages(), restored.Messages())
}

func TestTodoSinkDelegatesToSession(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	_, err := m.CreateSession(ctx, session.Config{ID: "s1"})
	require.NoError(t, err)

	todos := []types.Todo{{ID: "t1", Content: "write tests"}}
	m.SetTodos("s1", todos)
	assert.Equal(t, todos, m.GetTodos("s1"))

	assert.Nil(t, m.GetTodos("missing"))
	m.SetTodos("missing", todos) // must not panic
}

func TestTimeoutSweeperResolvesPendingConfirmationWithoutExternalConfirm(t *testing.T) {
	m := New(Config{
		WorkDir: t.TempDir(),
		DefaultHITLConfig: hitl.Config{
			Enabled:        true,
			DefaultTimeout: 10 * time.Millisecond,
			TimeoutAction:  hitl.TimeoutAutoApprove,
			LaneOf:         func(string) string { return "" },
		},
	})
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, session.Config{ID: "s1"})
	require.NoError(t, err)

	rx := sess.Confirmation().RequestConfirmation("tool1", "bash", nil, 0)

	require.Eventually(t, func() bool {
		select {
		case reply := <-rx:
			return reply.Approved
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond, "expected the timeout sweeper to auto-approve the stale confirmation")
}

func TestDestroySessionStopsTimeoutSweeper(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	sess, err := m.CreateSession(ctx, session.Config{ID: "s1"})
	require.NoError(t, err)

	require.NoError(t, m.DestroySession(ctx, "s1"))
	m.mu.RLock()
	_, stillTracked := m.sweepStop["s1"]
	m.mu.RUnlock()
	assert.False(t, stillTracked)
	_ = sess
}

func TestCancelOperationWithNothingInFlightReturnsFalse(t *testing.T) {
	m := newTestManager(t, nil)
	assert.False(t, m.CancelOperation("nothing-in-flight"))
}
