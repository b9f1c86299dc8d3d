package sessionmgr

import (
	"context"
	"strings"

	"github.com/opencode-ai/agentcore/internal/llmclient"
)

const titleSystemPrompt = `Summarize the following conversation in a short title, 5 words or fewer. Reply with the title text only, no quotes or punctuation.`

const titleSourceMessages = 4
const titleMaxLen = 80

// GenerateTitle derives a short title for sessionID from its first few
// messages. A Session carries no dedicated title field, so the result is
// returned for the caller (normally the transport layer) to attach to
// its own conversation-list record. A session with no messages yields an
// empty title rather than an error.
func (m *Manager) GenerateTitle(ctx context.Context, sessionID string) (string, error) {
	sess, err := m.GetSession(sessionID)
	if err != nil {
		return "", err
	}

	history := sess.Messages()
	if len(history) == 0 {
		return "", nil
	}

	llm, err := m.resolveLLM(sess)
	if err != nil {
		return "", nil
	}

	n := titleSourceMessages
	if n > len(history) {
		n = len(history)
	}

	resp, err := llm.Complete(ctx, llmclient.Request{
		System:   titleSystemPrompt,
		Messages: history[:n],
	})
	if err != nil {
		return "", err
	}

	return truncateTitle(resp.Message.Text()), nil
}

func truncateTitle(text string) string {
	title := strings.TrimSpace(strings.Trim(text, "\"'"))
	if len(title) <= titleMaxLen {
		return title
	}
	return strings.TrimSpace(title[:titleMaxLen])
}
