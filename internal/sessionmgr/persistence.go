package sessionmgr

import (
	"context"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/session"
)

// persistBestEffort saves sess's current snapshot to the configured
// store, if any. A save failure never rolls back or blocks the caller —
// it is reported on the session's own event bus as PersistenceFailed, per
// spec.md §4.6's note that persistence is best-effort from the caller's
// point of view.
func (m *Manager) persistBestEffort(ctx context.Context, sess *session.Session) {
	if m.cfg.Store == nil {
		return
	}
	if err := m.cfg.Store.Save(ctx, sess.ToSessionData()); err != nil {
		m.log.Warn().Err(err).Str("session", sess.ID()).Msg("persist failed")
		sess.Broadcast(event.Event{Type: event.PersistenceFailed, Data: event.PersistenceFailedData{
			SessionID: sess.ID(),
			Op:        "save",
			Err:       err.Error(),
		}})
	}
}

// LoadAllSessions rehydrates every session the configured store knows
// about, re-registering each one's queue, tool executor, and hook engine
// exactly as CreateSession would. Called once at startup before serving
// traffic; a no-op when no Store is configured.
func (m *Manager) LoadAllSessions(ctx context.Context) error {
	if m.cfg.Store == nil {
		return nil
	}

	ids, err := m.cfg.Store.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := m.RestoreSessionByID(ctx, id); err != nil {
			m.log.Warn().Err(err).Str("session", id).Msg("failed to restore session")
		}
	}
	return nil
}

// RestoreSessionByID loads one session's snapshot from the store and
// rehydrates it into a live, registered Session. The restored session
// carries no LLM client override — a caller must reinject one via
// Session.SetLLMClient before the next generate call, matching
// ToSessionData's documented exclusion of credentials.
func (m *Manager) RestoreSessionByID(ctx context.Context, id string) (*session.Session, error) {
	data, err := m.cfg.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg := session.Config{
		Workspace:            m.cfg.WorkDir,
		MaxContextTokens:     m.cfg.maxContextTokens(),
		AutoCompact:          m.cfg.DefaultAutoCompact,
		AutoCompactThreshold: m.cfg.autoCompactThreshold(),
		HITLConfig:           m.cfg.DefaultHITLConfig,
		QueueConfig:          m.cfg.DefaultQueueConfig,
	}

	sess, err := session.RestoreFromData(cfg, data)
	if err != nil {
		return nil, err
	}

	sess.Queue().Start(ctx)
	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.executor[sess.ID()] = m.newExecutor(sess)
	m.hooks[sess.ID()] = buildHooks()
	m.mu.Unlock()

	m.startTimeoutSweeper(sess)
	return sess, nil
}
