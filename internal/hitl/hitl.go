// Package hitl implements the human-in-the-loop confirmation manager: a
// per-session pending-request registry gating mutating tool calls behind
// an external approve/reject decision, with timeout semantics.
package hitl

import (
	"sync"
	"time"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/logging"
)

// Category classifies a tool for the requires-confirmation default.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryReadOnly
	CategoryMutating
)

var readOnlyTools = map[string]bool{
	"read": true, "glob": true, "ls": true, "grep": true,
	"list_files": true, "search": true,
}

var mutatingTools = map[string]bool{
	"bash": true, "write": true, "edit": true, "delete": true,
	"move": true, "copy": true, "execute": true,
}

// CategorizeTool returns a tool's read/mutating category. Unknown tools
// are treated as Mutating, the safe default.
func CategorizeTool(tool string) Category {
	if readOnlyTools[tool] {
		return CategoryReadOnly
	}
	if mutatingTools[tool] {
		return CategoryMutating
	}
	return CategoryMutating
}

// TimeoutAction decides the synthetic reply sent when a pending
// confirmation is never resolved in time.
type TimeoutAction string

const (
	TimeoutReject      TimeoutAction = "reject"
	TimeoutAutoApprove TimeoutAction = "auto_approve"
)

// Config tunes a Manager's requires-confirmation decision and default
// timeout behavior.
type Config struct {
	Enabled             bool
	RequireConfirmTools map[string]bool
	AutoApproveTools    map[string]bool
	YoloLanes           map[string]bool
	DefaultTimeout      time.Duration
	TimeoutAction       TimeoutAction
	LaneOf              func(tool string) string
}

// DefaultConfig returns a Manager config that confirms every mutating
// tool call with a two-minute reject-on-timeout policy.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		DefaultTimeout: 2 * time.Minute,
		TimeoutAction:  TimeoutReject,
		LaneOf:         func(string) string { return "" },
	}
}

// Reply is the resolution of a pending confirmation, delivered once on
// the receiver channel returned by RequestConfirmation.
type Reply struct {
	Approved bool
	Reason   string
	// Cancelled indicates the reply is synthetic, produced by Cancel or
	// CancelAll rather than by an explicit Confirm or a timeout sweep.
	Cancelled bool
}

type pending struct {
	toolID    string
	toolName  string
	args      any
	createdAt time.Time
	timeout   time.Duration
	replyCh   chan Reply
}

// Manager is a session-scoped confirmation registry.
type Manager struct {
	cfg Config
	bus *event.Bus

	mu      sync.Mutex
	entries map[string]*pending // tool_id -> pending
}

// NewManager creates a Manager publishing its lifecycle events on bus.
func NewManager(cfg Config, bus *event.Bus) *Manager {
	if cfg.LaneOf == nil {
		cfg.LaneOf = func(string) string { return "" }
	}
	return &Manager{cfg: cfg, bus: bus, entries: make(map[string]*pending)}
}

// UpdateConfig replaces the manager's configuration. Pending confirmations
// are left untouched; only subsequent RequiresConfirmation/RequestConfirmation
// calls observe the new config.
func (m *Manager) UpdateConfig(cfg Config) {
	if cfg.LaneOf == nil {
		cfg.LaneOf = func(string) string { return "" }
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// RequiresConfirmation implements the spec's five-step decision order.
func (m *Manager) RequiresConfirmation(tool string) bool {
	if !m.cfg.Enabled {
		return false
	}
	if m.cfg.RequireConfirmTools[tool] {
		return true
	}
	if m.cfg.AutoApproveTools[tool] {
		return false
	}
	if m.cfg.YoloLanes[m.cfg.LaneOf(tool)] {
		return false
	}
	return CategorizeTool(tool) == CategoryMutating
}

// RequestConfirmation registers a pending confirmation and returns the
// receiver channel the caller awaits (with its own timeout or by relying
// on CheckTimeouts). timeout<=0 uses the manager's DefaultTimeout.
func (m *Manager) RequestConfirmation(toolID, toolName string, args any, timeout time.Duration) <-chan Reply {
	if timeout <= 0 {
		timeout = m.cfg.DefaultTimeout
	}
	ch := make(chan Reply, 1)
	p := &pending{
		toolID:    toolID,
		toolName:  toolName,
		args:      args,
		createdAt: time.Now(),
		timeout:   timeout,
		replyCh:   ch,
	}

	m.mu.Lock()
	m.entries[toolID] = p
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(event.Event{
			Type: event.ConfirmationRequired,
			Data: event.ConfirmationRequiredData{
				ToolID: toolID, ToolName: toolName, Args: args,
				TimeoutMS: timeout.Milliseconds(),
			},
		})
	}
	return ch
}

// Confirm resolves a pending confirmation with an explicit decision.
func (m *Manager) Confirm(toolID string, approved bool, reason string) {
	m.mu.Lock()
	p, ok := m.entries[toolID]
	if ok {
		delete(m.entries, toolID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if m.bus != nil {
		m.bus.Publish(event.Event{
			Type: event.ConfirmationReceived,
			Data: event.ConfirmationReceivedData{ToolID: toolID, Approved: approved, Reason: reason},
		})
	}
	p.replyCh <- Reply{Approved: approved, Reason: reason}
}

// CheckTimeouts sweeps pending entries, resolving any whose timeout has
// elapsed with a synthetic reply per TimeoutAction, and returns the
// number resolved this way.
func (m *Manager) CheckTimeouts() int {
	now := time.Now()

	m.mu.Lock()
	var expired []*pending
	for id, p := range m.entries {
		if now.Sub(p.createdAt) >= p.timeout {
			expired = append(expired, p)
			delete(m.entries, id)
		}
	}
	m.mu.Unlock()

	for _, p := range expired {
		approved := m.cfg.TimeoutAction == TimeoutAutoApprove
		action := "rejected"
		if approved {
			action = "auto_approved"
		}
		if m.bus != nil {
			m.bus.Publish(event.Event{
				Type: event.ConfirmationTimeout,
				Data: event.ConfirmationTimeoutData{ToolID: p.toolID, ActionTaken: action},
			})
		}
		p.replyCh <- Reply{Approved: approved, Reason: "timeout"}
	}
	return len(expired)
}

// Cancel removes a single pending entry, sending a cancelled reply.
func (m *Manager) Cancel(toolID string) {
	m.mu.Lock()
	p, ok := m.entries[toolID]
	if ok {
		delete(m.entries, toolID)
	}
	m.mu.Unlock()
	if ok {
		p.replyCh <- Reply{Cancelled: true}
	}
}

// CancelAll drains every pending entry, sending a cancelled reply to
// each. Used on interrupt and on session shutdown.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*pending)
	m.mu.Unlock()

	for _, p := range entries {
		p.replyCh <- Reply{Cancelled: true}
	}
	logging.Component("hitl").Debug().Int("count", len(entries)).Msg("cancelled pending confirmations")
}

// PendingCount reports the number of outstanding confirmations, for
// metrics and tests.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// StartTimeoutSweeper runs CheckTimeouts on interval until stop is
// closed, as a background fallback to callers that don't time their own
// receiver waits.
func (m *Manager) StartTimeoutSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.CheckTimeouts()
			}
		}
	}()
}
