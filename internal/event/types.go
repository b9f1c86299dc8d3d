package event

// Type identifies the kind of an Event, used as the Bus's routing key and
// as the wire discriminator external surfaces (WebSocket, CLI) translate.
type Type string

const (
	// Agent loop lifecycle, in the order a single prompt emits them:
	// Start -> (TurnStart -> [TextDelta* | ToolStart | ToolEnd]* -> TurnEnd)* -> End|Error.
	Start          Type = "start"
	TurnStart      Type = "turn_start"
	TextDelta      Type = "text_delta"
	ToolStart      Type = "tool_start"
	ToolInputDelta Type = "tool_input_delta"
	ToolEnd        Type = "tool_end"
	TurnEnd        Type = "turn_end"
	End            Type = "end"
	Error          Type = "error"

	// HITL confirmation flow.
	ConfirmationRequired Type = "confirmation_required"
	ConfirmationReceived Type = "confirmation_received"
	ConfirmationTimeout  Type = "confirmation_timeout"

	// Permission gate.
	PermissionDenied Type = "permission_denied"

	// Context providers / compaction.
	ContextResolving Type = "context_resolving"
	ContextResolved  Type = "context_resolved"
	ContextCompacted Type = "context_compacted"

	// Session command queue.
	ExternalTaskPending   Type = "external_task_pending"
	ExternalTaskCompleted Type = "external_task_completed"
	QueueAlert            Type = "queue_alert"
	CommandRetry          Type = "command_retry"
	CommandDeadLettered   Type = "command_dead_lettered"

	// Todos.
	TodoUpdated Type = "todo_updated"

	// Memory subsystem.
	MemoryStored   Type = "memory_stored"
	MemoryRecalled Type = "memory_recalled"
	MemorySearched Type = "memory_searched"
	MemoryCleared  Type = "memory_cleared"

	// Subagent (fork/child session) lifecycle.
	SubagentStart    Type = "subagent_start"
	SubagentProgress Type = "subagent_progress"
	SubagentEnd      Type = "subagent_end"

	// Planning mode.
	PlanningStart Type = "planning_start"
	PlanningEnd   Type = "planning_end"
	StepStart     Type = "step_start"
	StepEnd       Type = "step_end"
	GoalExtracted Type = "goal_extracted"
	GoalProgress  Type = "goal_progress"
	GoalAchieved  Type = "goal_achieved"

	// Persistence.
	PersistenceFailed Type = "persistence_failed"
)

// Event is a single item published on a Bus: a Type discriminator plus an
// opaque, type-specific payload in Data.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// --- Data payloads, one struct per Type above that carries fields. ---

type StartData struct {
	Prompt string `json:"prompt"`
}

type TurnStartData struct {
	Turn int `json:"turn"`
}

type TextDeltaData struct {
	Text string `json:"text"`
}

type ToolStartData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ToolInputDeltaData struct {
	ID    string `json:"id"`
	Delta string `json:"delta"`
}

type ToolEndData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
}

type TurnEndData struct {
	Turn  int         `json:"turn"`
	Usage interface{} `json:"usage"`
}

type EndData struct {
	Text  string      `json:"text"`
	Usage interface{} `json:"usage"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type ConfirmationRequiredData struct {
	ToolID    string `json:"tool_id"`
	ToolName  string `json:"tool_name"`
	Args      any    `json:"args"`
	TimeoutMS int64  `json:"timeout_ms"`
}

type ConfirmationReceivedData struct {
	ToolID   string `json:"tool_id"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

type ConfirmationTimeoutData struct {
	ToolID      string `json:"tool_id"`
	ActionTaken string `json:"action_taken"` // "rejected" | "auto_approved"
}

type PermissionDeniedData struct {
	ToolID string `json:"tool_id,omitempty"`
	Reason string `json:"reason"`
}

type ContextResolvingData struct {
	Names []string `json:"names"`
}

type ContextResolvedData struct {
	TotalItems  int `json:"total_items"`
	TotalTokens int `json:"total_tokens"`
}

type ContextCompactedData struct {
	BeforeMessages int     `json:"before_messages"`
	AfterMessages  int     `json:"after_messages"`
	PercentBefore  float64 `json:"percent_before"`
}

type ExternalTaskPendingData struct {
	TaskID      string `json:"task_id"`
	SessionID   string `json:"session_id"`
	Lane        string `json:"lane"`
	CommandType string `json:"command_type"`
	Payload     any    `json:"payload"`
	TimeoutMS   int64  `json:"timeout_ms"`
}

type ExternalTaskCompletedData struct {
	TaskID string `json:"task_id"`
	Result any    `json:"result"`
}

type QueueAlertData struct {
	Lane    string `json:"lane"`
	Message string `json:"message"`
	Depth   int    `json:"depth"`
}

type CommandRetryData struct {
	CommandID string `json:"command_id"`
	Attempt   int    `json:"attempt"`
	Err       string `json:"error"`
}

type CommandDeadLetteredData struct {
	CommandID string `json:"command_id"`
	Attempts  int    `json:"attempts"`
	Err       string `json:"error"`
}

type TodoUpdatedData struct {
	Todos any `json:"todos"`
}

type SubagentStartData struct {
	ChildSessionID string `json:"child_session_id"`
	Prompt         string `json:"prompt"`
}

type SubagentProgressData struct {
	ChildSessionID string `json:"child_session_id"`
	Text           string `json:"text"`
}

type SubagentEndData struct {
	ChildSessionID string `json:"child_session_id"`
	FinalText      string `json:"final_text"`
}

type PlanningStartData struct {
	Goal string `json:"goal"`
}

type PlanningEndData struct {
	Steps int `json:"steps"`
}

type GoalExtractedData struct {
	Goal  string `json:"goal"`
	Steps int    `json:"steps"`
}

type StepStartData struct {
	StepID      string `json:"step_id"`
	Description string `json:"description"`
}

type StepEndData struct {
	StepID string `json:"step_id"`
	Done   bool   `json:"done"`
}

type GoalProgressData struct {
	Goal    string  `json:"goal"`
	Percent float64 `json:"percent"`
}

type PersistenceFailedData struct {
	SessionID string `json:"session_id"`
	Op        string `json:"op"`
	Err       string `json:"error"`
}
