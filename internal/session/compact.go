package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/pkg/types"
)

const (
	compactKeepThreshold = 30
	compactKeepHead      = 2
	compactKeepTail      = 20

	compactionSystemPrompt = "You are a conversation summarizer. Create a concise summary of the " +
		"conversation that preserves key context for continuing the discussion: what was " +
		"accomplished, current work in progress, files involved, next steps, and any key " +
		"user requests or constraints."
)

// Compact summarizes old turns in place, grounded on the teacher's
// compactMessages/buildSummaryPrompt: a no-op under 30 messages, otherwise
// initial=first 2, recent=last 20, middle=the rest gets replaced by a
// single synthetic "[Context Summary: ...]" user message produced by llm.
// With llm == nil (no LLM resolvable at compaction time) it falls back to
// keeping only the last 20 messages.
func (s *Session) Compact(ctx context.Context, llm llmclient.Client) error {
	s.mu.RLock()
	messages := append([]types.Message(nil), s.messages...)
	beforePercent := s.contextUsage.Percent
	s.mu.RUnlock()

	if len(messages) <= compactKeepThreshold {
		return nil
	}

	var final []types.Message
	if llm == nil {
		final = lastN(messages, compactKeepTail)
	} else {
		var err error
		final, err = summarize(ctx, llm, messages)
		if err != nil {
			return fmt.Errorf("session: compaction failed: %w", err)
		}
	}

	s.mu.Lock()
	s.messages = final
	s.touchLocked()
	s.mu.Unlock()

	s.bus.Publish(event.Event{
		Type: event.ContextCompacted,
		Data: event.ContextCompactedData{
			BeforeMessages: len(messages),
			AfterMessages:  len(final),
			PercentBefore:  beforePercent,
		},
	})
	return nil
}

func summarize(ctx context.Context, llm llmclient.Client, messages []types.Message) ([]types.Message, error) {
	initial := messages[:compactKeepHead]
	recent := messages[len(messages)-compactKeepTail:]
	middle := messages[compactKeepHead : len(messages)-compactKeepTail]

	if len(middle) == 0 {
		return recent, nil
	}

	resp, err := llm.Complete(ctx, llmclient.Request{
		System:    compactionSystemPrompt,
		Messages:  []types.Message{types.NewUserMessage(renderMiddle(middle))},
		MaxTokens: 2000,
	})
	if err != nil {
		return nil, err
	}

	summaryMsg := types.NewUserMessage(fmt.Sprintf("[Context Summary: %s]", resp.Message.Text()))

	final := make([]types.Message, 0, compactKeepHead+1+len(recent))
	final = append(final, initial...)
	final = append(final, summaryMsg)
	final = append(final, recent...)
	return final, nil
}

// renderMiddle joins messages as "role: text\n\n", the prompt shape the
// teacher's buildSummaryPrompt renders for the summarizer call.
func renderMiddle(messages []types.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Text())
		b.WriteString("\n\n")
	}
	return b.String()
}

func lastN(messages []types.Message, n int) []types.Message {
	if len(messages) <= n {
		return append([]types.Message(nil), messages...)
	}
	return append([]types.Message(nil), messages[len(messages)-n:]...)
}
