package agentloop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencode-ai/agentcore/internal/agentcoreerr"
	"github.com/opencode-ai/agentcore/internal/contextprovider"
	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/hook"
	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/internal/logging"
	"github.com/opencode-ai/agentcore/internal/permission"
	"github.com/opencode-ai/agentcore/internal/skill"
	"github.com/opencode-ai/agentcore/internal/toolexec"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// Execute runs one prompt to completion: resolve context, then loop
// generate/extract-tool-calls/gated-execute until the model stops
// requesting tools or max_tool_rounds is exceeded.
func (l *Loop) Execute(ctx context.Context, history []types.Message, prompt string) (AgentResult, error) {
	return l.run(ctx, history, prompt, nil)
}

// run is the shared turn loop for both Execute and ExecuteStreaming.
// eventsOut, when non-nil, additionally receives every event pushed
// (ExecuteStreaming's per-prompt channel); cfg.Emit always receives them.
func (l *Loop) run(ctx context.Context, history []types.Message, prompt string, eventsOut chan<- event.Event) (AgentResult, error) {
	l.pushEvent(ctx, eventsOut, event.Event{Type: event.Start, Data: event.StartData{Prompt: prompt}})

	augmentedSystem := l.cfg.SystemPrompt
	if len(l.cfg.ContextProviders) > 0 {
		names := make([]string, len(l.cfg.ContextProviders))
		for i, p := range l.cfg.ContextProviders {
			names[i] = p.Name()
		}
		l.pushEvent(ctx, eventsOut, event.Event{Type: event.ContextResolving, Data: event.ContextResolvingData{Names: names}})

		qr := contextprovider.QueryAll(ctx, l.cfg.ContextProviders, prompt, l.sessionID)
		if xml := contextprovider.RenderXML(qr.Items); xml != "" {
			augmentedSystem = augmentedSystem + "\n\n" + xml
		}
		l.pushEvent(ctx, eventsOut, event.Event{
			Type: event.ContextResolved,
			Data: event.ContextResolvedData{TotalItems: len(qr.Items), TotalTokens: qr.TotalTokens},
		})
	}

	messages := make([]types.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, types.NewUserMessage(prompt))

	var totalUsage types.TokenUsage
	toolCallsCount := 0
	schemas := l.toolSchemas()
	maxRounds := l.cfg.maxRounds()

	for turn := 1; ; turn++ {
		if turn > maxRounds {
			msg := fmt.Sprintf("max tool rounds (%d) exceeded", maxRounds)
			l.pushEvent(ctx, eventsOut, event.Event{Type: event.Error, Data: event.ErrorData{Message: msg}})
			return AgentResult{}, agentcoreerr.New(agentcoreerr.KindMaxRoundsExceeded, msg)
		}

		l.pushEvent(ctx, eventsOut, event.Event{Type: event.TurnStart, Data: event.TurnStartData{Turn: turn}})

		if l.cfg.Hooks != nil {
			l.cfg.Hooks.RunGenerateStart(ctx, l.sessionID, prompt)
		}

		resp, err := l.completeTurn(ctx, eventsOut, messages, augmentedSystem, schemas)

		if l.cfg.Hooks != nil {
			l.cfg.Hooks.RunGenerateEnd(ctx, l.sessionID, resp.Message.Text(), err)
		}
		if err != nil {
			l.pushEvent(ctx, eventsOut, event.Event{Type: event.Error, Data: event.ErrorData{Message: err.Error()}})
			return AgentResult{}, err
		}

		totalUsage = totalUsage.Add(resp.Usage)
		messages = append(messages, resp.Message)
		l.pushEvent(ctx, eventsOut, event.Event{Type: event.TurnEnd, Data: event.TurnEndData{Turn: turn, Usage: resp.Usage}})

		toolUses := resp.Message.ToolUses()
		if len(toolUses) == 0 {
			finalText := resp.Message.Text()
			l.pushEvent(ctx, eventsOut, event.Event{Type: event.End, Data: event.EndData{Text: finalText, Usage: totalUsage}})
			if len(l.cfg.ContextProviders) > 0 {
				contextprovider.NotifyTurnComplete(ctx, l.cfg.ContextProviders, l.sessionID, prompt, finalText)
			}
			return AgentResult{
				FinalText:      finalText,
				Messages:       messages,
				Usage:          totalUsage,
				ToolCallsCount: toolCallsCount,
			}, nil
		}

		for _, tc := range toolUses {
			toolCallsCount++
			messages = append(messages, l.gatedExecute(ctx, eventsOut, tc, &augmentedSystem))
		}
	}
}

// pushEvent delivers ev to AgentConfig.Emit and, if present, the
// per-prompt streaming channel — dropping the latter only if the caller
// has already abandoned ctx.
func (l *Loop) pushEvent(ctx context.Context, out chan<- event.Event, ev event.Event) {
	l.cfg.emit(ev)
	if out == nil {
		return
	}
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

// parseToolArgs decodes a tool_use block's raw input into an args map,
// encoding a JSON decode failure as the "__parse_error" sentinel key
// gated_execute checks for ahead of every other gate.
func parseToolArgs(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"__parse_error": err.Error()}
	}
	if m == nil {
		m = map[string]any{}
	}
	return m
}

func toolResultMessage(toolUseID, text string, isError bool) types.Message {
	return types.Message{Role: types.RoleTool, Content: []types.ContentBlock{
		types.NewToolResultBlock(toolUseID, text, isError),
	}}
}

// gatedExecute runs one tool call through the full gating pipeline:
// hooks -> skill allowed_tools -> permission policy -> HITL -> execute ->
// skill auto-load -> PostToolUse hook -> emit, returning the tool_result
// message appended to the conversation.
func (l *Loop) gatedExecute(ctx context.Context, eventsOut chan<- event.Event, tc types.ContentBlock, augmentedSystem *string) types.Message {
	args := parseToolArgs(tc.ToolInput)
	if parseErr, ok := args["__parse_error"].(string); ok {
		return toolResultMessage(tc.ToolUseID, "Error: "+parseErr, true)
	}

	call := hook.ToolCall{ID: tc.ToolUseID, Name: tc.ToolName, Input: args}

	if l.cfg.Hooks != nil {
		if d := l.cfg.Hooks.RunPreToolUse(ctx, l.sessionID, call); d.Block {
			l.pushEvent(ctx, eventsOut, event.Event{
				Type: event.PermissionDenied,
				Data: event.PermissionDeniedData{ToolID: tc.ToolUseID, Reason: d.Reason},
			})
			reason := fmt.Sprintf("Tool %q blocked by hook: %s", tc.ToolName, d.Reason)
			return toolResultMessage(tc.ToolUseID, reason, true)
		}
	}

	if hasRestrictingSkill(l.cfg.LoadedSkills) && !skill.Gate(l.cfg.LoadedSkills, tc.ToolName, args) {
		reason := "Blocked by skill allowed_tools restriction"
		l.pushEvent(ctx, eventsOut, event.Event{
			Type: event.PermissionDenied,
			Data: event.PermissionDeniedData{ToolID: tc.ToolUseID, Reason: reason},
		})
		return toolResultMessage(tc.ToolUseID, reason, true)
	}

	decision := permission.Ask
	if l.cfg.Policy != nil {
		decision = l.cfg.Policy.Check(tc.ToolName, args)
	}
	if decision == permission.Deny {
		reason := "Blocked by deny rule"
		l.pushEvent(ctx, eventsOut, event.Event{
			Type: event.PermissionDenied,
			Data: event.PermissionDeniedData{ToolID: tc.ToolUseID, Reason: reason},
		})
		return toolResultMessage(tc.ToolUseID, reason, true)
	}

	var output string
	var exitCode int
	var metadata json.RawMessage

	switch {
	case l.cfg.Confirmation != nil && l.cfg.Confirmation.RequiresConfirmation(tc.ToolName):
		rx := l.cfg.Confirmation.RequestConfirmation(tc.ToolUseID, tc.ToolName, args, 0)
		select {
		case reply := <-rx:
			switch {
			case reply.Cancelled:
				output, exitCode = "tool call cancelled", 1
			case reply.Approved:
				output, exitCode, metadata = l.runTool(ctx, tc, args)
			default:
				output, exitCode = "rejected by user: "+reply.Reason, 1
			}
		case <-ctx.Done():
			output, exitCode = "tool call cancelled: "+ctx.Err().Error(), 1
		}
	case decision == permission.Allow:
		output, exitCode, metadata = l.runTool(ctx, tc, args)
	default:
		output, exitCode = "requires confirmation but no HITL configured", 1
	}

	if len(metadata) > 0 {
		l.maybeAutoLoadSkill(metadata, augmentedSystem)
	}

	if l.cfg.Hooks != nil {
		l.cfg.Hooks.RunPostToolUse(ctx, l.sessionID, call, hook.ToolResult{
			Output: output, ExitCode: exitCode, IsError: exitCode != 0,
		})
	}

	l.pushEvent(ctx, eventsOut, event.Event{
		Type: event.ToolEnd,
		Data: event.ToolEndData{ID: tc.ToolUseID, Name: tc.ToolName, Output: output, ExitCode: exitCode},
	})

	return toolResultMessage(tc.ToolUseID, output, exitCode != 0)
}

func hasRestrictingSkill(skills []*skill.Skill) bool {
	for _, s := range skills {
		if s.Restricting() {
			return true
		}
	}
	return false
}

// runTool dispatches to the configured Executor, building a fresh
// toolexec.Context whose AbortCh closes when ctx is cancelled.
func (l *Loop) runTool(ctx context.Context, tc types.ContentBlock, args map[string]any) (output string, exitCode int, metadata json.RawMessage) {
	inputJSON, err := json.Marshal(args)
	if err != nil {
		return "Error: failed to marshal tool input: " + err.Error(), 1, nil
	}

	abortCh := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(abortCh)
	}()

	toolCtx := &toolexec.Context{
		SessionID: l.sessionID,
		ToolID:    tc.ToolUseID,
		WorkDir:   l.workDir,
		AbortCh:   abortCh,
	}

	result, _ := l.cfg.Executor.Execute(ctx, tc.ToolName, inputJSON, toolCtx)
	return result.Output, result.ExitCode, result.Metadata
}

// loadSkillDirective is the metadata side channel a tool's Result carries
// to request the loop inject and, for Tool-kind skills, register a
// freshly-loaded skill (spec.md §4.5.1 step (e)).
type loadSkillDirective struct {
	LoadSkill    bool   `json:"_load_skill"`
	SkillContent string `json:"skill_content"`
}

func (l *Loop) maybeAutoLoadSkill(metadata json.RawMessage, augmentedSystem *string) {
	var dir loadSkillDirective
	if err := json.Unmarshal(metadata, &dir); err != nil || !dir.LoadSkill || dir.SkillContent == "" {
		return
	}

	sk, err := skill.Parse(dir.SkillContent)
	if err != nil {
		logging.Component("agentloop").Warn().Err(err).Msg("failed to parse auto-loaded skill")
		return
	}

	switch sk.Kind {
	case skill.KindInstruction:
		*augmentedSystem += "\n\n" + renderSkillXML(sk)
	case skill.KindTool:
		*augmentedSystem += "\n\n" + renderSkillXML(sk)
		if reg, ok := l.cfg.Executor.(interface{ Register(t toolexec.Tool) }); ok {
			reg.Register(newSkillTool(sk))
		}
	case skill.KindAgent:
		logging.Component("agentloop").Info().Str("skill", sk.Name).Msg("agent-kind skill auto-loaded, no injection")
	}
}

func renderSkillXML(sk *skill.Skill) string {
	return fmt.Sprintf("<skill name=%q kind=%q>\n%s\n</skill>", sk.Name, sk.Kind, sk.Body)
}

// completeTurn runs one non-streaming LLM turn. ExecuteStreaming overrides
// this behavior via streamTurn; run() always calls through this method so
// the turn loop itself stays identical between the two modes.
func (l *Loop) completeTurn(ctx context.Context, eventsOut chan<- event.Event, messages []types.Message, system string, schemas []llmclient.ToolSchema) (llmclient.Response, error) {
	if eventsOut != nil {
		return l.streamTurn(ctx, eventsOut, messages, system, schemas)
	}
	return l.llm.Complete(ctx, llmclient.Request{Messages: messages, System: system, Tools: schemas})
}
