package session

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opencode-ai/agentcore/internal/agentcoreerr"
	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/hitl"
	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/internal/permission"
	"github.com/opencode-ai/agentcore/internal/queue"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// idPattern enforces the spec's path-safe session id shape: alphanumerics
// plus '-', '_', '.', never starting with '.'.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateID reports whether id is a path-safe session identifier: alnum
// plus "-_.", no leading '.', and (since a leading '.' also rules out a
// leading ".." pair) never "..".
func ValidateID(id string) error {
	if id == "" || !idPattern.MatchString(id) {
		return agentcoreerr.New(agentcoreerr.KindIngressInvalid, fmt.Sprintf("invalid session id %q", id))
	}
	return nil
}

// Config seeds a new Session's static configuration.
type Config struct {
	ID       string
	ParentID *string

	Workspace            string
	SystemPrompt         string
	MaxContextTokens     int
	AutoCompact          bool
	AutoCompactThreshold float64

	ModelName string

	PermissionPolicy *permission.Policy
	HITLConfig       hitl.Config
	QueueConfig      queue.Config
}

// Session is the engine's owned-mutable-state aggregate for one
// conversation: messages, usage/cost accounting, todos, memory, and the
// permission policy / confirmation manager / command queue / event bus
// it exclusively owns.
type Session struct {
	mu sync.RWMutex

	id       string
	parentID *string

	workspace            string
	systemPrompt         string
	maxContextTokens     int
	autoCompact          bool
	autoCompactThreshold float64
	modelName            string

	state types.State

	messages     []types.Message
	contextUsage types.ContextUsage
	totalUsage   types.TokenUsage
	costRecords  []types.CostRecord

	todos       []types.Todo
	memory      map[string]string
	currentPlan *types.Plan

	llmClient llmclient.Client

	permissionPolicy *permission.Policy
	confirmation     *hitl.Manager
	queue            *queue.Manager
	bus              *event.Bus

	revertMessageID string
	shareToken      string

	genCancel context.CancelFunc

	createdAt time.Time
	updatedAt time.Time

	lastErr error
}

// New creates a Session in the Active state. A zero Config.MaxContextTokens
// is raised to 1 so context_usage.percent stays well-defined (spec.md §3).
func New(cfg Config) (*Session, error) {
	if err := ValidateID(cfg.ID); err != nil {
		return nil, err
	}
	if cfg.MaxContextTokens < 1 {
		cfg.MaxContextTokens = 1
	}

	policy := cfg.PermissionPolicy
	if policy == nil {
		policy = permission.NewPolicy()
	}
	bus := event.NewBus()
	now := types.Now()

	s := &Session{
		id:                   cfg.ID,
		parentID:             cfg.ParentID,
		workspace:            cfg.Workspace,
		systemPrompt:         cfg.SystemPrompt,
		maxContextTokens:     cfg.MaxContextTokens,
		autoCompact:          cfg.AutoCompact,
		autoCompactThreshold: cfg.AutoCompactThreshold,
		modelName:            cfg.ModelName,
		state:                types.StateActive,
		memory:               make(map[string]string),
		permissionPolicy:     policy,
		confirmation:         hitl.NewManager(cfg.HITLConfig, bus),
		queue:                queue.NewManager(cfg.ID, cfg.QueueConfig, bus),
		bus:                  bus,
		createdAt:            now,
		updatedAt:            now,
	}
	s.contextUsage.Max = cfg.MaxContextTokens
	return s, nil
}

func (s *Session) touchLocked() {
	s.updatedAt = types.Now()
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// ParentID returns the subagent-link parent id, if this session was
// forked or spawned as a child.
func (s *Session) ParentID() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parentID
}

// State returns the session's current lifecycle state.
func (s *Session) State() types.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Workspace returns the session's working directory.
func (s *Session) Workspace() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workspace
}

// SystemPrompt returns the session's configured system prompt.
func (s *Session) SystemPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systemPrompt
}

// ModelName returns the per-session model override, if any.
func (s *Session) ModelName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelName
}

// SetModelName installs a per-session model override.
func (s *Session) SetModelName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelName = name
	s.touchLocked()
}

// LLMClient returns the per-session LLM client override, or nil if the
// session uses whatever the caller resolves from its own registry.
func (s *Session) LLMClient() llmclient.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llmClient
}

// SetLLMClient installs a per-session LLM client override. Never
// persisted: ToSessionData carries no credentials, so a restored session
// starts with no override until the caller reinjects one.
func (s *Session) SetLLMClient(c llmclient.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.llmClient = c
	s.touchLocked()
}

// Messages returns a copy of the session's message history.
func (s *Session) Messages() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Message(nil), s.messages...)
}

// AddMessage appends msg to the conversation. Messages are append-only
// within a session.
func (s *Session) AddMessage(msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.touchLocked()
}

// UpdateUsage accumulates delta into the session's total usage and
// recomputes context_usage from used/max, per the spec's post-response
// invariant.
func (s *Session) UpdateUsage(delta types.TokenUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalUsage = s.totalUsage.Add(delta)
	s.contextUsage.Used = delta.Total
	s.contextUsage.Turns++
	s.contextUsage.Recompute()
	s.touchLocked()
}

// TotalUsage returns the session's cumulative token usage.
func (s *Session) TotalUsage() types.TokenUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalUsage
}

// ContextUsage returns the session's current context-window usage.
func (s *Session) ContextUsage() types.ContextUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contextUsage
}

// ShouldAutoCompact reports whether context_usage.percent has crossed the
// session's configured auto-compact threshold.
func (s *Session) ShouldAutoCompact() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoCompact && s.contextUsage.Percent >= s.autoCompactThreshold
}

// RecordCost appends a cost line item and folds its USD amount into the
// running total.
func (s *Session) RecordCost(rec types.CostRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costRecords = append(s.costRecords, rec)
	s.touchLocked()
}

// TotalCost sums every recorded cost line item in USD.
func (s *Session) TotalCost() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, r := range s.costRecords {
		total += r.CostUSD
	}
	return total
}

// CostRecords returns a copy of the session's cost ledger.
func (s *Session) CostRecords() []types.CostRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.CostRecord(nil), s.costRecords...)
}

// Clear resets the conversation transcript and context usage, leaving
// cumulative cost, todos, and memory untouched — it empties what the next
// turn sees, not the session's permanent accounting.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.contextUsage = types.ContextUsage{Max: s.maxContextTokens}
	s.currentPlan = nil
	s.touchLocked()
}

// Pause transitions the session to Paused. A BeginGeneration call while
// paused is refused.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = types.StatePaused
	s.touchLocked()
}

// Resume transitions a Paused session back to Active.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == types.StatePaused {
		s.state = types.StateActive
	}
	s.touchLocked()
}

// SetError transitions the session to Error, recording cause for
// LastError.
func (s *Session) SetError(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = types.StateError
	s.lastErr = cause
	s.touchLocked()
}

// LastError returns the cause recorded by the most recent SetError, if
// any.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// SetCompleted transitions the session to Completed.
func (s *Session) SetCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = types.StateCompleted
	s.touchLocked()
}

// BeginGeneration enforces "exactly one in-progress generation per
// session": a Paused session refuses with KindSessionPaused; a session
// already generating has its prior generation aborted (its context
// cancelled) before the new one starts. The returned context is derived
// from parent and is cancelled either by a subsequent BeginGeneration
// call or by EndGeneration; the agent loop must run its turn loop bound
// to this context for cancellation to actually stop work.
func (s *Session) BeginGeneration(parent context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == types.StatePaused {
		return nil, agentcoreerr.New(agentcoreerr.KindSessionPaused, "session "+s.id+" is paused")
	}
	if s.genCancel != nil {
		s.genCancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.genCancel = cancel
	s.state = types.StateActive
	s.touchLocked()
	return ctx, nil
}

// EndGeneration cancels the in-progress generation's context, if any,
// and clears it. Called both on ordinary completion and on explicit
// interrupt.
func (s *Session) EndGeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.genCancel != nil {
		s.genCancel()
		s.genCancel = nil
	}
}

// --- Permission policy (exclusively owned) ---

// CheckPermission evaluates tool/args against the session's permission
// policy.
func (s *Session) CheckPermission(tool string, args any) permission.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissionPolicy.Check(tool, args)
}

// AddDenyRule appends a deny rule to the session's permission policy.
func (s *Session) AddDenyRule(r permission.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissionPolicy.AddDenyRule(r)
	s.touchLocked()
}

// AddAllowRule appends an allow rule to the session's permission policy.
func (s *Session) AddAllowRule(r permission.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissionPolicy.AddAllowRule(r)
	s.touchLocked()
}

// AddAskRule appends an ask rule to the session's permission policy.
func (s *Session) AddAskRule(r permission.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissionPolicy.AddAskRule(r)
	s.touchLocked()
}

// SetPermissionPolicy replaces the session's permission policy wholesale.
func (s *Session) SetPermissionPolicy(p *permission.Policy) {
	if p == nil {
		p = permission.NewPolicy()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissionPolicy = p
	s.touchLocked()
}

// PermissionPolicy returns the session's current permission policy.
func (s *Session) PermissionPolicy() *permission.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissionPolicy
}

// --- Confirmation manager (exclusively owned) ---

// Confirmation returns the session's HITL confirmation manager.
func (s *Session) Confirmation() *hitl.Manager {
	return s.confirmation
}

// SetConfirmationPolicy replaces the confirmation manager's
// configuration.
func (s *Session) SetConfirmationPolicy(cfg hitl.Config) {
	s.confirmation.UpdateConfig(cfg)
	s.mu.Lock()
	s.touchLocked()
	s.mu.Unlock()
}

// --- Command queue (exclusively owned) ---

// Queue returns the session's command queue.
func (s *Session) Queue() *queue.Manager {
	return s.queue
}

// --- Event broadcaster (exclusively owned) ---

// SubscribeEvents registers fn for every event this session publishes,
// returning an unsubscribe func.
func (s *Session) SubscribeEvents(fn event.Subscriber) func() {
	return s.bus.SubscribeAll(fn)
}

// Broadcast publishes ev to every subscriber of this session's event bus.
func (s *Session) Broadcast(ev event.Event) {
	s.bus.Publish(ev)
}

// Bus returns the session's event bus, for components (agent loop,
// queue, confirmation manager) that need to publish directly.
func (s *Session) Bus() *event.Bus {
	return s.bus
}

// --- Todos (toolexec.TodoSink delegate target; see sessionmgr) ---

// SetTodos replaces the session's todo list and emits TodoUpdated.
func (s *Session) SetTodos(todos []types.Todo) {
	s.mu.Lock()
	s.todos = append([]types.Todo(nil), todos...)
	s.touchLocked()
	s.mu.Unlock()

	s.bus.Publish(event.Event{Type: event.TodoUpdated, Data: event.TodoUpdatedData{Todos: todos}})
}

// GetTodos returns a copy of the session's current todo list.
func (s *Session) GetTodos() []types.Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Todo(nil), s.todos...)
}

// --- Memory ---

// Remember stores a key/value pair in the session's working memory and
// emits MemoryStored.
func (s *Session) Remember(key, value string) {
	s.mu.Lock()
	s.memory[key] = value
	s.touchLocked()
	s.mu.Unlock()

	s.bus.Publish(event.Event{Type: event.MemoryStored, Data: map[string]any{"key": key}})
}

// Recall looks up a key in working memory and emits MemoryRecalled.
func (s *Session) Recall(key string) (string, bool) {
	s.mu.RLock()
	v, ok := s.memory[key]
	s.mu.RUnlock()

	s.bus.Publish(event.Event{Type: event.MemoryRecalled, Data: map[string]any{"key": key, "found": ok}})
	return v, ok
}

// SearchMemory returns every stored key/value pair whose key contains
// query as a substring, and emits MemorySearched.
func (s *Session) SearchMemory(query string) map[string]string {
	s.mu.RLock()
	out := make(map[string]string)
	for k, v := range s.memory {
		if query == "" || contains(k, query) {
			out[k] = v
		}
	}
	s.mu.RUnlock()

	s.bus.Publish(event.Event{Type: event.MemorySearched, Data: map[string]any{"query": query, "matches": len(out)}})
	return out
}

// ForgetAll clears working memory and emits MemoryCleared.
func (s *Session) ForgetAll() {
	s.mu.Lock()
	s.memory = make(map[string]string)
	s.touchLocked()
	s.mu.Unlock()

	s.bus.Publish(event.Event{Type: event.MemoryCleared, Data: nil})
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// --- Plan (planning mode, agentloop) ---

// CurrentPlan returns the session's active plan, if planning mode has
// produced one.
func (s *Session) CurrentPlan() *types.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPlan
}

// SetCurrentPlan installs or clears (nil) the session's active plan.
func (s *Session) SetCurrentPlan(p *types.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPlan = p
	s.touchLocked()
}

// --- Revert / Share (supplemented from teacher's session/service.go) ---

// Revert marks messageID as the session's rollback point.
func (s *Session) Revert(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revertMessageID = messageID
	s.touchLocked()
}

// Unrevert clears the session's rollback point.
func (s *Session) Unrevert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revertMessageID = ""
	s.touchLocked()
}

// RevertPoint returns the message id most recently marked by Revert, or
// "" if none is set.
func (s *Session) RevertPoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revertMessageID
}

// Share generates an opaque share token for the session, if it does not
// already have one, and returns it.
func (s *Session) Share() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shareToken == "" {
		s.shareToken = uuid.NewString()
	}
	s.touchLocked()
	return s.shareToken
}

// Unshare revokes the session's share token.
func (s *Session) Unshare() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shareToken = ""
	s.touchLocked()
}

// ShareToken returns the session's current share token, or "" if unshared.
func (s *Session) ShareToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shareToken
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// UpdatedAt returns the last time any mutation touched the session.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Close tears down the session's owned machinery: stops its command
// queue, cancels pending confirmations, and closes its event bus.
func (s *Session) Close() {
	s.queue.Stop()
	s.confirmation.CancelAll()
	s.bus.Close()
}
