package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/pkg/types"
)

type stubClient struct{ id string }

func (s *stubClient) Complete(ctx context.Context, req Request) (Response, error) {
	return Response{Message: types.NewAssistantMessage(s.id), StopReason: StopEndTurn}, nil
}

func (s *stubClient) CompleteStreaming(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	out := make(chan StreamEvent, 1)
	out <- StreamEvent{Kind: StreamDone, Final: &Response{StopReason: StopEndTurn}}
	close(out)
	return out, nil
}

func TestParseModelString(t *testing.T) {
	p, m := ParseModelString("anthropic/claude-sonnet-4-20250514")
	assert.Equal(t, "anthropic", p)
	assert.Equal(t, "claude-sonnet-4-20250514", m)

	p, m = ParseModelString("gpt-4o")
	assert.Equal(t, "", p)
	assert.Equal(t, "gpt-4o", m)
}

func TestRegistryResolveFallsBackToFirstRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register("anthropic", &stubClient{id: "anthropic"}, []types.Model{{ID: "claude-sonnet-4-20250514", ProviderID: "anthropic"}})

	client, modelID, err := r.Resolve("claude-sonnet-4-20250514")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", modelID)

	resp, err := client.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", resp.Message.Text())
}

func TestRegistryResolveExplicitProvider(t *testing.T) {
	r := NewRegistry()
	r.Register("anthropic", &stubClient{id: "anthropic"}, nil)
	r.Register("openai", &stubClient{id: "openai"}, nil)

	client, modelID, err := r.Resolve("openai/gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", modelID)

	resp, _ := client.Complete(context.Background(), Request{})
	assert.Equal(t, "openai", resp.Message.Text())
}

func TestRegistryGetUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	assert.Error(t, err)
}

func TestRegistryAllModels(t *testing.T) {
	r := NewRegistry()
	r.Register("anthropic", &stubClient{}, []types.Model{{ID: "a"}})
	r.Register("openai", &stubClient{}, []types.Model{{ID: "b"}, {ID: "c"}})
	assert.Len(t, r.AllModels(), 3)
}
