// Package contextprovider implements the ContextProvider capability the
// Agent Loop queries before each prompt and notifies after each turn.
package contextprovider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/opencode-ai/agentcore/internal/logging"
)

// Item is one piece of retrieved context: a source-tagged snippet plus
// its relevance score and an estimated token cost, injected into the
// augmented system prompt as an XML fragment.
type Item struct {
	Source string
	Text   string
	Score  float64
	Tokens int
}

// Provider is a narrow capability interface: a semantic retrieval
// source, a memory store, or any other knowledge feed the loop queries
// ahead of a prompt and notifies once the turn finishes. Providers never
// block each other — the loop queries all of them concurrently and a
// single provider's failure is logged, never propagated.
type Provider interface {
	// Name identifies the provider in ContextResolving/Resolved events.
	Name() string
	// Query returns context items relevant to prompt within sessionID.
	Query(ctx context.Context, prompt, sessionID string) ([]Item, error)
	// OnTurnComplete notifies the provider a turn has finished, so it
	// can update its own state (e.g. store the exchange for recall).
	OnTurnComplete(ctx context.Context, sessionID, prompt, responseText string) error
}

// QueryResult is the outcome of querying every configured provider:
// the merged items plus the sum of their estimated token counts.
type QueryResult struct {
	Items       []Item
	TotalTokens int
}

// QueryAll runs Query concurrently against every provider and merges
// the results. A provider that returns an error is logged and skipped;
// it never fails the overall call, matching the loop's policy that
// context-provider errors never terminate a prompt.
func QueryAll(ctx context.Context, providers []Provider, prompt, sessionID string) QueryResult {
	type outcome struct {
		items []Item
		err   error
		name  string
	}

	results := make([]outcome, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			items, err := p.Query(ctx, prompt, sessionID)
			results[i] = outcome{items: items, err: err, name: p.Name()}
		}(i, p)
	}
	wg.Wait()

	var merged QueryResult
	for _, r := range results {
		if r.err != nil {
			logging.Component("contextprovider").Warn().
				Err(r.err).Str("provider", r.name).Msg("context provider query failed")
			continue
		}
		merged.Items = append(merged.Items, r.items...)
		for _, item := range r.items {
			merged.TotalTokens += item.Tokens
		}
	}
	return merged
}

// NotifyTurnComplete fans OnTurnComplete out to every provider
// concurrently, logging and ignoring individual failures.
func NotifyTurnComplete(ctx context.Context, providers []Provider, sessionID, prompt, responseText string) {
	var wg sync.WaitGroup
	for _, p := range providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			if err := p.OnTurnComplete(ctx, sessionID, prompt, responseText); err != nil {
				logging.Component("contextprovider").Warn().
					Err(err).Str("provider", p.Name()).Msg("context provider on_turn_complete failed")
			}
		}(p)
	}
	wg.Wait()
}

// RenderXML renders items as the XML fragment the loop appends to the
// system prompt: "<context source=\"...\"><item>...</item>...</context>"
// grouped by source, in the order items were merged.
func RenderXML(items []Item) string {
	if len(items) == 0 {
		return ""
	}

	order := make([]string, 0, 4)
	grouped := make(map[string][]Item)
	for _, it := range items {
		if _, ok := grouped[it.Source]; !ok {
			order = append(order, it.Source)
		}
		grouped[it.Source] = append(grouped[it.Source], it)
	}

	var b strings.Builder
	for _, source := range order {
		fmt.Fprintf(&b, "<context source=%q>\n", source)
		for _, it := range grouped[source] {
			b.WriteString("  <item>")
			b.WriteString(it.Text)
			b.WriteString("</item>\n")
		}
		b.WriteString("</context>")
		if source != order[len(order)-1] {
			b.WriteString("\n")
		}
	}
	return b.String()
}
