package sessionmgr

import (
	"context"

	"github.com/opencode-ai/agentcore/internal/agentcoreerr"
	"github.com/opencode-ai/agentcore/internal/agentloop"
	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/internal/session"
	"github.com/opencode-ai/agentcore/internal/skill"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// resolveLLM picks the Client a generate call for sess should use: the
// session's own override; else, if the session has a model-string
// override and a registry is configured, the registry's resolution; else
// the Manager's default; else a typed not-configured error.
func (m *Manager) resolveLLM(sess *session.Session) (llmclient.Client, error) {
	if c := sess.LLMClient(); c != nil {
		return c, nil
	}
	if model := sess.ModelName(); model != "" && m.cfg.LLMRegistry != nil {
		client, _, err := m.cfg.LLMRegistry.Resolve(model)
		if err == nil {
			return client, nil
		}
	}
	if m.cfg.DefaultLLM != nil {
		return m.cfg.DefaultLLM, nil
	}
	return nil, agentcoreerr.New(agentcoreerr.KindNotConfigured, "no LLM client configured for session "+sess.ID())
}

// loadedSkills returns every skill currently registered, for AgentConfig's
// allowed_tools gate. A Manager with no SkillRegistry configured runs with
// no loaded skills.
func (m *Manager) loadedSkills() []*skill.Skill {
	if m.cfg.SkillRegistry == nil {
		return nil
	}
	return m.cfg.SkillRegistry.List()
}

// buildAgentConfig snapshots everything a generate call for sess needs
// into an agentloop.AgentConfig, per spec.md §4.6 step 2's snapshot list.
func (m *Manager) buildAgentConfig(sess *session.Session) agentloop.AgentConfig {
	return agentloop.AgentConfig{
		SystemPrompt:     sess.SystemPrompt(),
		Executor:         m.executorFor(sess.ID()),
		Policy:           sess.PermissionPolicy(),
		Confirmation:     sess.Confirmation(),
		Hooks:            m.Hooks(sess.ID()),
		ContextProviders: m.cfg.ContextProviders,
		PlanningEnabled:  m.cfg.PlanningEnabled,
		GoalTracking:     m.cfg.GoalTracking,
		LoadedSkills:     m.loadedSkills(),
		Emit:             sess.Broadcast,
	}
}

// Generate runs one prompt to completion against sessionID: rejects a
// paused session, snapshots the session's configuration into an Agent
// Loop, writes the result back (messages, usage), persists in the
// background, and runs auto-compaction if the context usage has crossed
// the session's threshold.
func (m *Manager) Generate(ctx context.Context, sessionID, prompt string) (agentloop.AgentResult, error) {
	sess, err := m.GetSession(sessionID)
	if err != nil {
		return agentloop.AgentResult{}, err
	}

	llm, err := m.resolveLLM(sess)
	if err != nil {
		return agentloop.AgentResult{}, err
	}

	genCtx, err := sess.BeginGeneration(ctx)
	if err != nil {
		return agentloop.AgentResult{}, err
	}
	defer sess.EndGeneration()

	history := sess.Messages()
	loop := agentloop.New(sessionID, sess.Workspace(), llm, m.buildAgentConfig(sess))

	var result agentloop.AgentResult
	if m.cfg.PlanningEnabled {
		result, err = loop.ExecuteWithPlanning(genCtx, history, prompt)
	} else {
		result, err = loop.Execute(genCtx, history, prompt)
	}
	if err != nil {
		sess.SetError(err)
		return agentloop.AgentResult{}, err
	}

	m.writeBackResult(sess, history, result)
	m.persistBestEffort(ctx, sess)
	m.MaybeAutoCompact(ctx, sessionID)
	return result, nil
}

// GenerateStreaming is the streaming variant of Generate. It records an
// abort handle in ongoing_operations so CancelOperation can abort
// mid-flight, and spawns the post-completion write-back/persist/compact
// steps in the background once the stream finishes.
func (m *Manager) GenerateStreaming(ctx context.Context, sessionID, prompt string) (<-chan event.Event, error) {
	sess, err := m.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	llm, err := m.resolveLLM(sess)
	if err != nil {
		return nil, err
	}

	genCtx, err := sess.BeginGeneration(ctx)
	if err != nil {
		return nil, err
	}

	history := sess.Messages()
	loop := agentloop.New(sessionID, sess.Workspace(), llm, m.buildAgentConfig(sess))
	events, handle := loop.ExecuteStreaming(genCtx, history, prompt)

	m.ongoingMu.Lock()
	m.ongoing[sessionID] = handle.Cancel
	m.ongoingMu.Unlock()

	go func() {
		result, err := handle.Wait()
		sess.EndGeneration()

		m.ongoingMu.Lock()
		delete(m.ongoing, sessionID)
		m.ongoingMu.Unlock()

		if err != nil {
			sess.SetError(err)
			return
		}
		m.writeBackResult(sess, history, result)
		m.persistBestEffort(context.Background(), sess)
		m.MaybeAutoCompact(context.Background(), sessionID)
	}()

	return events, nil
}

// CancelOperation aborts sessionID's in-flight generation, if any, first
// cancelling every pending HITL entry (delivering a cancelled reply to
// each awaiter) and then the generation's own context. Either action
// alone is sufficient to report true.
func (m *Manager) CancelOperation(sessionID string) bool {
	cancelled := false

	if sess, err := m.GetSession(sessionID); err == nil {
		if sess.Confirmation().PendingCount() > 0 {
			sess.Confirmation().CancelAll()
			cancelled = true
		}
	}

	m.ongoingMu.Lock()
	cancel, ok := m.ongoing[sessionID]
	delete(m.ongoing, sessionID)
	m.ongoingMu.Unlock()

	if ok {
		cancel()
		cancelled = true
	}
	return cancelled
}

// writeBackResult appends every message the turn produced beyond the
// snapshot history and folds the turn's usage into the session. The
// Agent Loop returns the full transcript (history plus whatever it
// appended), so only the tail past len(history) is new.
func (m *Manager) writeBackResult(sess *session.Session, history []types.Message, result agentloop.AgentResult) {
	if len(result.Messages) > len(history) {
		for _, msg := range result.Messages[len(history):] {
			sess.AddMessage(msg)
		}
	}
	sess.UpdateUsage(result.Usage)
}

// MaybeAutoCompact runs compact(session_id) and emits ContextCompacted
// when auto-compaction is enabled and the session's context usage has
// crossed its threshold. Returns whether compaction ran.
func (m *Manager) MaybeAutoCompact(ctx context.Context, sessionID string) bool {
	sess, err := m.GetSession(sessionID)
	if err != nil {
		return false
	}
	if !sess.ShouldAutoCompact() {
		return false
	}

	llm, _ := m.resolveLLM(sess)
	if err := sess.Compact(ctx, llm); err != nil {
		m.log.Warn().Err(err).Str("session", sessionID).Msg("auto-compact failed")
		return false
	}
	m.persistBestEffort(ctx, sess)
	return true
}
