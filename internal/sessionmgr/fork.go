package sessionmgr

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/session"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// register finishes what CreateSession does once a Session value exists:
// start its queue, build and register its tool executor and hook engine,
// track it in the live map, and persist it best-effort.
func (m *Manager) register(ctx context.Context, sess *session.Session) {
	sess.Queue().Start(ctx)

	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.executor[sess.ID()] = m.newExecutor(sess)
	m.hooks[sess.ID()] = buildHooks()
	m.mu.Unlock()

	m.startTimeoutSweeper(sess)
	m.persistBestEffort(ctx, sess)
}

// ForkSession duplicates sourceID's conversation state (messages, usage,
// cost, model, todos, context usage) into a brand-new session whose
// parent_id points at the source, per spec.md §4.6's fork operation.
// The fork starts Active with fresh timestamps and its own command
// queue — it does not inherit the source's in-flight generation, if any.
func (m *Manager) ForkSession(ctx context.Context, sourceID, newID string) (*session.Session, error) {
	source, err := m.GetSession(sourceID)
	if err != nil {
		return nil, err
	}

	data := source.ToSessionData()
	data.ID = newID
	data.ParentID = sourceID
	data.State = types.StateActive
	now := time.Now().UnixMilli()
	data.CreatedAt = now
	data.UpdatedAt = now

	cfg := session.Config{
		Workspace:            source.Workspace(),
		SystemPrompt:         source.SystemPrompt(),
		ModelName:            source.ModelName(),
		PermissionPolicy:     source.PermissionPolicy(),
		HITLConfig:           m.cfg.DefaultHITLConfig,
		QueueConfig:          m.cfg.DefaultQueueConfig,
		MaxContextTokens:     m.cfg.maxContextTokens(),
		AutoCompactThreshold: m.cfg.autoCompactThreshold(),
	}

	fork, err := session.RestoreFromData(cfg, data)
	if err != nil {
		return nil, err
	}

	m.register(ctx, fork)
	return fork, nil
}

// CreateChildSession creates a fresh session scoped to childID whose
// parent_id is parentID, inheriting the parent's workspace, permission
// policy, model name and LLM client when cfg leaves them unset (the
// confirmation config is not inherited), grounded on the teacher's
// SubagentExecutor.createChildSession.
func (m *Manager) CreateChildSession(ctx context.Context, parentID, childID string, cfg session.Config) (*session.Session, error) {
	parent, err := m.GetSession(parentID)
	if err != nil {
		return nil, err
	}

	cfg.ID = childID
	cfg.ParentID = &parentID
	if cfg.Workspace == "" {
		cfg.Workspace = parent.Workspace()
	}
	if cfg.PermissionPolicy == nil {
		cfg.PermissionPolicy = parent.PermissionPolicy()
	}
	if cfg.ModelName == "" {
		cfg.ModelName = parent.ModelName()
	}

	child, err := m.CreateSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if parent.LLMClient() != nil && child.LLMClient() == nil {
		child.SetLLMClient(parent.LLMClient())
	}
	return child, nil
}

// IsChildSession reports whether id has a non-nil parent_id.
func (m *Manager) IsChildSession(id string) bool {
	sess, err := m.GetSession(id)
	if err != nil {
		return false
	}
	return sess.ParentID() != nil
}

// GetChildSessions returns every live session whose parent_id is
// parentID, in no particular order.
func (m *Manager) GetChildSessions(parentID string) []*session.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var children []*session.Session
	for _, sess := range m.sessions {
		if pid := sess.ParentID(); pid != nil && *pid == parentID {
			children = append(children, sess)
		}
	}
	return children
}

// ExecuteTask implements toolexec.TaskExecutor: it spins up a child
// session under parentSessionID, runs prompt to completion in it, and
// returns the final assistant text plus the child's id, grounded on the
// teacher's SubagentExecutor.ExecuteSubtask.
func (m *Manager) ExecuteTask(ctx context.Context, parentSessionID, description, prompt string) (string, string, error) {
	parent, err := m.GetSession(parentSessionID)
	if err != nil {
		return "", "", err
	}

	childID := childSessionID(parentSessionID)
	child, err := m.CreateChildSession(ctx, parentSessionID, childID, session.Config{
		SystemPrompt: subagentSystemPrompt(description),
	})
	if err != nil {
		return "", "", err
	}
	defer m.DestroySession(ctx, child.ID())

	parent.Broadcast(event.Event{Type: event.SubagentStart, Data: event.SubagentStartData{
		ChildSessionID: child.ID(),
		Prompt:         prompt,
	}})

	result, err := m.Generate(ctx, child.ID(), prompt)
	if err != nil {
		return "", "", err
	}

	parent.Broadcast(event.Event{Type: event.SubagentEnd, Data: event.SubagentEndData{
		ChildSessionID: child.ID(),
		FinalText:      result.FinalText,
	}})
	return result.FinalText, child.ID(), nil
}

// childSessionID derives a unique id for a subagent's child session,
// namespaced under the parent's id to keep it recognizable in logs and
// event streams.
func childSessionID(parentID string) string {
	return parentID + "-task-" + uuid.NewString()
}

func subagentSystemPrompt(description string) string {
	if description == "" {
		return "You are a subagent completing an isolated task. Report your findings concisely."
	}
	return "You are a subagent completing: " + description + "\nReport your findings concisely."
}
