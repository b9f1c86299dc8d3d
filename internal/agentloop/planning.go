package agentloop

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// Complexity classifies a prompt's estimated difficulty, used to decide
// whether planning mode is worth the extra round trip.
type Complexity string

const (
	ComplexitySimple      Complexity = "simple"
	ComplexityMedium      Complexity = "medium"
	ComplexityComplex     Complexity = "complex"
	ComplexityVeryComplex Complexity = "very_complex"
)

// Step is one unit of a Plan: an optional tool hint and the prior steps
// it depends on.
type Step struct {
	ID           string
	Description  string
	Tool         string
	Dependencies []string
}

// Plan is the LLM's decomposition of a prompt into a goal and ordered steps.
type Plan struct {
	Goal  string
	Steps []Step
}

const planningSystemPrompt = `You are a planning assistant. Break the user's request into a goal and an ordered list of steps.

Respond in exactly this format:
GOAL: <one-line goal statement>
STEPS:
1. [tool: <tool name>] <step description> (depends on: <comma-separated step numbers>)
2. <step description>
...

Only include "[tool: ...]" when a specific tool is required for that step.
Only include "(depends on: ...)" when the step depends on a prior step's output.`

var stepLinePattern = regexp.MustCompile(`^(\d+)\.\s*(?:\[tool:\s*([^\]]+)\]\s*)?(.+?)(?:\s*\(depends on:\s*([^)]*)\))?$`)

// Plan asks the LLM for a plan covering prompt, optionally grounded in
// additional context. Parsing is lenient: only a "GOAL:" line and
// numbered "STEPS:" lines are required; anything else is ignored.
func (l *Loop) Plan(ctx context.Context, prompt, context string) (*Plan, error) {
	content := prompt
	if context != "" {
		content = prompt + "\n\nContext:\n" + context
	}
	resp, err := l.llm.Complete(ctx, llmclient.Request{
		System:    planningSystemPrompt,
		Messages:  []types.Message{types.NewUserMessage(content)},
		MaxTokens: 1000,
	})
	if err != nil {
		return nil, err
	}
	return parsePlan(resp.Message.Text()), nil
}

func parsePlan(text string) *Plan {
	plan := &Plan{}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if upper := strings.ToUpper(line); strings.HasPrefix(upper, "GOAL:") {
			plan.Goal = strings.TrimSpace(line[len("GOAL:"):])
			continue
		}
		if strings.HasPrefix(strings.ToUpper(line), "STEPS:") {
			continue
		}
		m := stepLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		step := Step{
			ID:          "step-" + m[1],
			Tool:        strings.TrimSpace(m[2]),
			Description: strings.TrimSpace(m[3]),
		}
		if deps := strings.TrimSpace(m[4]); deps != "" {
			for _, d := range strings.Split(deps, ",") {
				if d = strings.TrimSpace(d); d != "" {
					step.Dependencies = append(step.Dependencies, "step-"+d)
				}
			}
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan
}

const complexityClassifierPrompt = `Classify the complexity of the user's task as exactly one word: Simple, Medium, Complex, or VeryComplex. Respond with only that word.`

// ClassifyComplexity asks the LLM to rate prompt's complexity, matching
// the response against substrings rather than requiring exact enum text.
func (l *Loop) ClassifyComplexity(ctx context.Context, prompt string) (Complexity, error) {
	resp, err := l.llm.Complete(ctx, llmclient.Request{
		System:    complexityClassifierPrompt,
		Messages:  []types.Message{types.NewUserMessage(prompt)},
		MaxTokens: 20,
	})
	if err != nil {
		return ComplexityMedium, err
	}
	return parseComplexity(resp.Message.Text()), nil
}

func parseComplexity(text string) Complexity {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "very complex"), strings.Contains(lower, "verycomplex"):
		return ComplexityVeryComplex
	case strings.Contains(lower, "complex"):
		return ComplexityComplex
	case strings.Contains(lower, "medium"):
		return ComplexityMedium
	default:
		return ComplexitySimple
	}
}

// ExecuteWithPlanning runs planning mode (spec.md §4.5.3): plan the
// prompt, prepend a goal+steps message, then run the inner loop once
// per step — each inner run bypasses planning recursion since it calls
// run() directly rather than re-entering ExecuteWithPlanning.
func (l *Loop) ExecuteWithPlanning(ctx context.Context, history []types.Message, prompt string) (AgentResult, error) {
	if !l.cfg.PlanningEnabled {
		return l.Execute(ctx, history, prompt)
	}

	l.cfg.emit(event.Event{Type: event.PlanningStart, Data: event.PlanningStartData{Goal: prompt}})

	plan, err := l.Plan(ctx, prompt, "")
	if err != nil {
		l.cfg.emit(event.Event{Type: event.Error, Data: event.ErrorData{Message: "planning failed: " + err.Error()}})
		return AgentResult{}, err
	}
	l.cfg.emit(event.Event{Type: event.PlanningEnd, Data: event.PlanningEndData{Steps: len(plan.Steps)}})

	if l.cfg.GoalTracking {
		l.cfg.emit(event.Event{Type: event.GoalExtracted, Data: event.GoalExtractedData{Goal: plan.Goal, Steps: len(plan.Steps)}})
	}

	messages := make([]types.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, types.NewUserMessage(renderPlanMessage(plan)))

	var final AgentResult
	for i, step := range plan.Steps {
		l.cfg.emit(event.Event{Type: event.StepStart, Data: event.StepStartData{StepID: step.ID, Description: step.Description}})

		stepPrompt := step.Description
		if step.Tool != "" {
			stepPrompt = fmt.Sprintf("%s (use tool: %s)", stepPrompt, step.Tool)
		}

		result, err := l.run(ctx, messages, stepPrompt, nil)
		l.cfg.emit(event.Event{Type: event.StepEnd, Data: event.StepEndData{StepID: step.ID, Done: err == nil}})
		if err != nil {
			return AgentResult{}, fmt.Errorf("agentloop: step %s failed: %w", step.ID, err)
		}

		messages = result.Messages
		final = result

		if l.cfg.GoalTracking {
			percent := float64(i+1) / float64(len(plan.Steps))
			l.cfg.emit(event.Event{Type: event.GoalProgress, Data: event.GoalProgressData{Goal: plan.Goal, Percent: percent}})
		}
	}

	if l.cfg.GoalTracking && len(plan.Steps) > 0 {
		l.cfg.emit(event.Event{Type: event.GoalAchieved, Data: event.GoalProgressData{Goal: plan.Goal, Percent: 1}})
	}

	return final, nil
}

func renderPlanMessage(plan *Plan) string {
	var b strings.Builder
	b.WriteString("GOAL: " + plan.Goal + "\n\nSTEPS:\n")
	for _, s := range plan.Steps {
		b.WriteString("- " + s.ID + ": " + s.Description + "\n")
	}
	return b.String()
}
