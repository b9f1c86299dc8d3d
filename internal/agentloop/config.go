package agentloop

import (
	"github.com/opencode-ai/agentcore/internal/contextprovider"
	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/hitl"
	"github.com/opencode-ai/agentcore/internal/hook"
	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/internal/permission"
	"github.com/opencode-ai/agentcore/internal/skill"
	"github.com/opencode-ai/agentcore/internal/toolexec"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// DefaultMaxToolRounds bounds a single prompt's turn count absent an
// explicit AgentConfig.MaxToolRounds.
const DefaultMaxToolRounds = 50

// AgentConfig bundles everything one prompt's execution needs, snapshotted
// by the caller (normally the Session Manager) from a Session's own state.
type AgentConfig struct {
	SystemPrompt  string
	Executor      toolexec.Executor
	MaxToolRounds int

	Policy       *permission.Policy
	Confirmation *hitl.Manager
	Hooks        *hook.Engine

	ContextProviders []contextprovider.Provider

	PlanningEnabled bool
	GoalTracking    bool

	LoadedSkills []*skill.Skill

	// Emit, if non-nil, is called for every event the loop produces, in
	// order, on the per-prompt channel the spec describes. The Session
	// Manager normally wires this to the session's own event.Bus.Broadcast.
	Emit func(event.Event)
}

// maxRounds returns cfg.MaxToolRounds, falling back to DefaultMaxToolRounds.
func (cfg AgentConfig) maxRounds() int {
	if cfg.MaxToolRounds > 0 {
		return cfg.MaxToolRounds
	}
	return DefaultMaxToolRounds
}

func (cfg AgentConfig) emit(ev event.Event) {
	if cfg.Emit != nil {
		cfg.Emit(ev)
	}
}

// AgentResult is the terminal outcome of one execute/execute_streaming call.
type AgentResult struct {
	FinalText      string
	Messages       []types.Message
	Usage          types.TokenUsage
	ToolCallsCount int
}

// Loop drives one prompt's turn loop against a single LLM client and tool
// executor. A Loop is cheap to build and not reused across prompts — the
// Session Manager constructs one per generate() call from the session's
// current snapshot.
type Loop struct {
	cfg       AgentConfig
	llm       llmclient.Client
	sessionID string
	workDir   string
}

// New builds a Loop for one prompt's execution against llm, rooted at
// workDir for tool context and tagged with sessionID for event payloads
// and context-provider queries.
func New(sessionID, workDir string, llm llmclient.Client, cfg AgentConfig) *Loop {
	return &Loop{cfg: cfg, llm: llm, sessionID: sessionID, workDir: workDir}
}

// toolSchemas collects the ToolSchema list offered to the LLM from the
// configured executor, when it exposes one (toolexec.Registry does).
func (l *Loop) toolSchemas() []llmclient.ToolSchema {
	lister, ok := l.cfg.Executor.(interface{ List() []toolexec.Tool })
	if !ok {
		return nil
	}
	tools := lister.List()
	schemas := make([]llmclient.ToolSchema, 0, len(tools))
	for _, t := range tools {
		schemas = append(schemas, llmclient.ToolSchema{
			Name:        t.ID(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return schemas
}
