package contextprovider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name       string
	items      []Item
	queryErr   error
	turnCalled chan string
	failOnTurn bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Query(_ context.Context, _, _ string) ([]Item, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.items, nil
}

func (s *stubProvider) OnTurnComplete(_ context.Context, sessionID, _, _ string) error {
	if s.turnCalled != nil {
		s.turnCalled <- sessionID
	}
	if s.failOnTurn {
		return errors.New("boom")
	}
	return nil
}

func TestQueryAllMergesAcrossProviders(t *testing.T) {
	a := &stubProvider{name: "a", items: []Item{{Source: "a", Text: "x", Tokens: 1}}}
	b := &stubProvider{name: "b", items: []Item{{Source: "b", Text: "y", Tokens: 2}}}

	result := QueryAll(context.Background(), []Provider{a, b}, "prompt", "sess")
	assert.Len(t, result.Items, 2)
	assert.Equal(t, 3, result.TotalTokens)
}

func TestQueryAllIgnoresFailingProvider(t *testing.T) {
	ok := &stubProvider{name: "ok", items: []Item{{Source: "ok", Text: "fine", Tokens: 1}}}
	bad := &stubProvider{name: "bad", queryErr: errors.New("down")}

	result := QueryAll(context.Background(), []Provider{ok, bad}, "prompt", "sess")
	require.Len(t, result.Items, 1)
	assert.Equal(t, "fine", result.Items[0].Text)
}

func TestNotifyTurnCompleteFansOutAndSwallowsErrors(t *testing.T) {
	ch := make(chan string, 2)
	a := &stubProvider{name: "a", turnCalled: ch}
	b := &stubProvider{name: "b", turnCalled: ch, failOnTurn: true}

	NotifyTurnComplete(context.Background(), []Provider{a, b}, "sess", "prompt", "resp")
	close(ch)

	seen := map[string]bool{}
	for s := range ch {
		seen[s] = true
	}
	assert.Equal(t, map[string]bool{"sess": true}, seen)
}

func TestRenderXMLGroupsBySource(t *testing.T) {
	out := RenderXML([]Item{
		{Source: "docs", Text: "one"},
		{Source: "docs", Text: "two"},
		{Source: "memory", Text: "three"},
	})
	assert.Contains(t, out, `<context source="docs">`)
	assert.Contains(t, out, `<context source="memory">`)
	assert.Contains(t, out, "<item>one</item>")
}

func TestRenderXMLEmpty(t *testing.T) {
	assert.Equal(t, "", RenderXML(nil))
}

func TestSemanticProviderRecallsSimilarText(t *testing.T) {
	p := NewSemanticProvider("semantic", 2, 0.1)
	p.Add("s1", "the deploy pipeline failed on staging")
	p.Add("s1", "unrelated note about lunch plans")

	items, err := p.Query(context.Background(), "why did the deploy pipeline fail", "s1")
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Contains(t, items[0].Text, "deploy pipeline")
}

func TestSemanticProviderOnTurnCompleteStoresExchange(t *testing.T) {
	p := NewSemanticProvider("semantic", 3, 0.0)
	require.NoError(t, p.OnTurnComplete(context.Background(), "s1", "what is the weather", "it is sunny today"))

	items, err := p.Query(context.Background(), "weather sunny", "s1")
	require.NoError(t, err)
	require.NotEmpty(t, items)
}
