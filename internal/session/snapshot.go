package session

import (
	"time"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// ToSessionData produces a serializable snapshot. The LLM client override
// (which may carry API credentials) is never included — RestoreFromData
// starts with none, and the caller must reinject one.
func (s *Session) ToSessionData() types.SessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var parentID string
	if s.parentID != nil {
		parentID = *s.parentID
	}

	return types.SessionData{
		ID:        s.id,
		ParentID:  parentID,
		State:     s.state,
		Messages:  append([]types.Message(nil), s.messages...),
		Usage:     s.totalUsage,
		Context:   s.contextUsage,
		Cost:      append([]types.CostRecord(nil), s.costRecords...),
		Todos:     append([]types.Todo(nil), s.todos...),
		Memory:    copyMemory(s.memory),
		CreatedAt: s.createdAt.UnixMilli(),
		UpdatedAt: s.updatedAt.UnixMilli(),
	}
}

// RestoreFromData builds a Session from a prior snapshot plus the static
// config (workspace, system prompt, policies) the store keeps alongside
// it — SessionData itself carries only the fields in spec.md §3 that must
// survive a restart.
func RestoreFromData(cfg Config, data types.SessionData) (*Session, error) {
	cfg.ID = data.ID
	if data.ParentID != "" {
		pid := data.ParentID
		cfg.ParentID = &pid
	}

	s, err := New(cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = data.State
	s.messages = append([]types.Message(nil), data.Messages...)
	s.totalUsage = data.Usage
	s.contextUsage = data.Context
	s.costRecords = append([]types.CostRecord(nil), data.Cost...)
	s.todos = append([]types.Todo(nil), data.Todos...)
	s.memory = copyMemory(data.Memory)
	s.createdAt = time.UnixMilli(data.CreatedAt)
	s.updatedAt = time.UnixMilli(data.UpdatedAt)
	return s, nil
}

func copyMemory(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
