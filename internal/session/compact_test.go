package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/pkg/types"
)

type stubSummarizer struct{ text string }

func (s *stubSummarizer) Complete(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	return llmclient.Response{Message: types.NewAssistantMessage(s.text), StopReason: llmclient.StopEndTurn}, nil
}

func (s *stubSummarizer) CompleteStreaming(ctx context.Context, req llmclient.Request) (<-chan llmclient.StreamEvent, error) {
	out := make(chan llmclient.StreamEvent, 1)
	out <- llmclient.StreamEvent{Kind: llmclient.StreamDone, Final: &llmclient.Response{StopReason: llmclient.StopEndTurn}}
	close(out)
	return out, nil
}

func fillMessages(s *Session, n int) {
	for i := 0; i < n; i++ {
		s.AddMessage(types.NewUserMessage("turn"))
	}
}

func TestCompactNoopUnderThreshold(t *testing.T) {
	s := newTestSession(t)
	fillMessages(s, 30)
	require.NoError(t, s.Compact(context.Background(), &stubSummarizer{text: "summary"}))
	assert.Len(t, s.Messages(), 30)
}

func TestCompactWithoutLLMTruncatesToLast20(t *testing.T) {
	s := newTestSession(t)
	fillMessages(s, 40)
	require.NoError(t, s.Compact(context.Background(), nil))
	assert.Len(t, s.Messages(), 20)
}

func TestCompactWithLLMSummarizesMiddle(t *testing.T) {
	s := newTestSession(t)
	fillMessages(s, 40)
	require.NoError(t, s.Compact(context.Background(), &stubSummarizer{text: "prior work summarized"}))

	messages := s.Messages()
	// initial(2) + summary(1) + recent(20) = 23
	require.Len(t, messages, 23)
	assert.Contains(t, messages[2].Text(), "prior work summarized")
	assert.Contains(t, messages[2].Text(), "[Context Summary:")
}

func TestRenderMiddleJoinsRoleAndText(t *testing.T) {
	out := renderMiddle([]types.Message{
		types.NewUserMessage("hi"),
		types.NewAssistantMessage("hello"),
	})
	assert.Contains(t, out, "user: hi\n\n")
	assert.Contains(t, out, "assistant: hello\n\n")
}
