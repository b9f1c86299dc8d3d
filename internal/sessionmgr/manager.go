package sessionmgr

import (
	"context"
	"sync"
	"time"

	"github.com/opencode-ai/agentcore/internal/agentcoreerr"
	"github.com/opencode-ai/agentcore/internal/contextprovider"
	"github.com/opencode-ai/agentcore/internal/hitl"
	"github.com/opencode-ai/agentcore/internal/hook"
	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/internal/logging"
	"github.com/opencode-ai/agentcore/internal/queue"
	"github.com/opencode-ai/agentcore/internal/session"
	"github.com/opencode-ai/agentcore/internal/skill"
	"github.com/opencode-ai/agentcore/internal/store"
	"github.com/opencode-ai/agentcore/internal/toolexec"
	"github.com/opencode-ai/agentcore/pkg/types"
	"github.com/rs/zerolog"
)

// hitlSweepInterval is how often each session's HITL manager is swept
// for expired pending confirmations. It is independent of any one
// confirmation's own timeout — a short interval here just bounds how
// late the synthetic timeout reply can fire relative to policy's
// default_timeout_ms.
const hitlSweepInterval = 2 * time.Second

// Config seeds a Manager's defaults: what every newly created session
// inherits unless its own session.Config overrides it.
type Config struct {
	// Store persists sessions across restarts. Nil disables persistence —
	// sessions live only in memory for the process lifetime.
	Store store.SessionStore

	// LLMRegistry resolves "provider/model" strings for per-session model
	// overrides; DefaultLLM is used when a session has neither its own
	// client nor a resolvable model override.
	LLMRegistry *llmclient.Registry
	DefaultLLM  llmclient.Client

	DefaultHITLConfig           hitl.Config
	DefaultQueueConfig          queue.Config
	DefaultMaxContextTokens     int
	DefaultAutoCompact          bool
	DefaultAutoCompactThreshold float64

	ContextProviders []contextprovider.Provider
	SkillRegistry    *skill.Registry
	PlanningEnabled  bool
	GoalTracking     bool

	// WorkDir is the fallback workspace for a session.Config that leaves
	// Workspace empty, matching spec.md §4.6's "fallback to the
	// executor's default".
	WorkDir string
}

func (cfg Config) maxContextTokens() int {
	if cfg.DefaultMaxContextTokens > 0 {
		return cfg.DefaultMaxContextTokens
	}
	return 200_000
}

func (cfg Config) autoCompactThreshold() float64 {
	if cfg.DefaultAutoCompactThreshold > 0 {
		return cfg.DefaultAutoCompactThreshold
	}
	return 0.80
}

// Manager owns every live Session in the process, keyed by ID, plus the
// machinery (store, LLM registry, context providers, skills) a generate
// call snapshots from. It implements toolexec.TodoSink and
// toolexec.TaskExecutor so the engine's built-in tools can reach back into
// session state and spawn subagents without a package import cycle.
type Manager struct {
	cfg Config
	log zerolog.Logger

	mu        sync.RWMutex
	sessions  map[string]*session.Session
	executor  map[string]toolexec.Executor
	hooks     map[string]*hook.Engine
	sweepStop map[string]chan struct{}

	ongoingMu sync.Mutex
	ongoing   map[string]context.CancelFunc
}

// New creates a Manager. Call LoadAllSessions afterward to rehydrate any
// persisted sessions before serving traffic.
func New(cfg Config) *Manager {
	return &Manager{
		cfg:       cfg,
		log:       logging.Component("sessionmgr"),
		sessions:  make(map[string]*session.Session),
		executor:  make(map[string]toolexec.Executor),
		hooks:     make(map[string]*hook.Engine),
		sweepStop: make(map[string]chan struct{}),
		ongoing:   make(map[string]context.CancelFunc),
	}
}

// startTimeoutSweeper starts sess's HITL manager's background timeout
// sweep, so a pending confirmation with no external confirm() call still
// resolves via ConfirmationTimeout once its policy.default_timeout_ms
// elapses, per spec.md §4.5.1(d). Idempotent per session.
func (m *Manager) startTimeoutSweeper(sess *session.Session) {
	m.mu.Lock()
	if _, exists := m.sweepStop[sess.ID()]; exists {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.sweepStop[sess.ID()] = stop
	m.mu.Unlock()

	sess.Confirmation().StartTimeoutSweeper(hitlSweepInterval, stop)
}

// stopTimeoutSweeper halts the sweeper started for id, if any.
func (m *Manager) stopTimeoutSweeper(id string) {
	m.mu.Lock()
	stop, ok := m.sweepStop[id]
	delete(m.sweepStop, id)
	m.mu.Unlock()
	if ok {
		close(stop)
	}
}

// Hooks returns the live hook engine for a session, so a caller can
// register additional PreToolUse/PostToolUse/GenerateStart/GenerateEnd
// handlers ahead of its next generate call. Every session's engine starts
// with doom-loop detection wired in as a built-in PreToolUse hook.
func (m *Manager) Hooks(sessionID string) *hook.Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hooks[sessionID]
}

// buildHooks returns a fresh hook engine with doom-loop detection wired in
// as a built-in PreToolUse hook, the one safeguard every session carries
// regardless of caller-supplied hooks.
func buildHooks() *hook.Engine {
	e := hook.NewEngine()
	e.AddPreToolUse(hook.NewDoomLoopDetector().AsPreToolUseHook())
	return e
}

// CreateSession validates id, builds a Session from cfg (filling in
// Manager-level defaults for anything left zero), starts its command
// queue, registers its per-workspace tool executor (including the task
// tool wired back to this Manager), and persists it if a Store is
// configured. A persistence failure does not roll back the in-memory
// session — it emits PersistenceFailed on the session's own bus.
func (m *Manager) CreateSession(ctx context.Context, cfg session.Config) (*session.Session, error) {
	if cfg.Workspace == "" {
		cfg.Workspace = m.cfg.WorkDir
	}
	if cfg.MaxContextTokens == 0 {
		cfg.MaxContextTokens = m.cfg.maxContextTokens()
	}
	if cfg.AutoCompactThreshold == 0 {
		cfg.AutoCompactThreshold = m.cfg.autoCompactThreshold()
	}
	if cfg.HITLConfig.DefaultTimeout == 0 {
		cfg.HITLConfig = m.cfg.DefaultHITLConfig
	}
	if cfg.QueueConfig.Lanes == nil {
		cfg.QueueConfig = m.cfg.DefaultQueueConfig
	}

	sess, err := session.New(cfg)
	if err != nil {
		return nil, err
	}

	m.register(ctx, sess)
	return sess, nil
}

// DestroySession removes a session from memory, tears down its owned
// machinery (queue, confirmations, event bus), and deletes it from the
// store if one is configured.
func (m *Manager) DestroySession(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	delete(m.executor, id)
	delete(m.hooks, id)
	m.mu.Unlock()
	if !ok {
		return agentcoreerr.New(agentcoreerr.KindSessionNotFound, "session "+id+" not found")
	}

	m.stopTimeoutSweeper(id)
	sess.Close()

	if m.cfg.Store != nil {
		if err := m.cfg.Store.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// GetSession returns the live session for id, or KindSessionNotFound.
func (m *Manager) GetSession(id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, agentcoreerr.New(agentcoreerr.KindSessionNotFound, "session "+id+" not found")
	}
	return sess, nil
}

// newExecutor builds the per-session tool executor: the engine's
// default tool set plus the task tool, wired back to this Manager so
// task() can reach GetTodos/SetTodos/ExecuteTask without toolexec
// importing sessionmgr.
func (m *Manager) newExecutor(sess *session.Session) toolexec.Executor {
	exec := toolexec.DefaultRegistry(sess.Workspace(), m)
	exec.Register(toolexec.NewTaskTool(m))
	return exec
}

// executorFor returns the tool executor registered for a session.
func (m *Manager) executorFor(id string) toolexec.Executor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.executor[id]
}

// ListSessions returns every live session's ID.
func (m *Manager) ListSessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// GetLLMForSession resolves the client a generate call for id would use:
// the session's own override, else its model-string override resolved
// through the registry, else the Manager's default.
func (m *Manager) GetLLMForSession(id string) (llmclient.Client, error) {
	sess, err := m.GetSession(id)
	if err != nil {
		return nil, err
	}
	return m.resolveLLM(sess)
}

// --- toolexec.TodoSink ---

// SetTodos implements toolexec.TodoSink by delegating to the named
// session's own todo list. A session that no longer exists silently
// drops the write — the todo tool call has nothing left to update.
func (m *Manager) SetTodos(sessionID string, todos []types.Todo) {
	sess, err := m.GetSession(sessionID)
	if err != nil {
		return
	}
	sess.SetTodos(todos)
}

// GetTodos implements toolexec.TodoSink.
func (m *Manager) GetTodos(sessionID string) []types.Todo {
	sess, err := m.GetSession(sessionID)
	if err != nil {
		return nil
	}
	return sess.GetTodos()
}
