package agentloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/llmclient"
)

func TestParsePlanLenientFormat(t *testing.T) {
	text := "GOAL: ship the feature\n\nSTEPS:\n1. [tool: bash] run the build\n2. verify output (depends on: 1)\n"
	plan := parsePlan(text)

	assert.Equal(t, "ship the feature", plan.Goal)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "step-1", plan.Steps[0].ID)
	assert.Equal(t, "bash", plan.Steps[0].Tool)
	assert.Equal(t, "run the build", plan.Steps[0].Description)
	assert.Empty(t, plan.Steps[0].Dependencies)

	assert.Equal(t, "step-2", plan.Steps[1].ID)
	assert.Equal(t, "verify output", plan.Steps[1].Description)
	assert.Equal(t, []string{"step-1"}, plan.Steps[1].Dependencies)
}

func TestParseComplexityMatchesSubstring(t *testing.T) {
	assert.Equal(t, ComplexityVeryComplex, parseComplexity("This is VeryComplex."))
	assert.Equal(t, ComplexityComplex, parseComplexity("complex"))
	assert.Equal(t, ComplexityMedium, parseComplexity("Medium effort"))
	assert.Equal(t, ComplexitySimple, parseComplexity("trivial one-liner"))
}

func TestExecuteWithPlanningRunsEachStep(t *testing.T) {
	client := &scriptedClient{responses: []llmclient.Response{
		textResponse("GOAL: finish task\n\nSTEPS:\n1. do the first thing\n2. do the second thing\n"),
		textResponse("step one done"),
		textResponse("step two done"),
	}}

	var events []event.Event
	loop := New("sess-1", "/tmp", client, AgentConfig{
		PlanningEnabled: true,
		GoalTracking:    true,
		Emit:            func(ev event.Event) { events = append(events, ev) },
	})

	result, err := loop.ExecuteWithPlanning(context.Background(), nil, "finish task")
	require.NoError(t, err)
	assert.Equal(t, "step two done", result.FinalText)

	var starts, ends, progress int
	for _, ev := range events {
		switch ev.Type {
		case event.StepStart:
			starts++
		case event.StepEnd:
			ends++
		case event.GoalProgress:
			progress++
		}
	}
	assert.Equal(t, 2, starts)
	assert.Equal(t, 2, ends)
	assert.Equal(t, 2, progress)
}

func TestExecuteWithPlanningDisabledFallsBackToExecute(t *testing.T) {
	client := &scriptedClient{responses: []llmclient.Response{textResponse("plain answer")}}
	loop := New("sess-1", "/tmp", client, AgentConfig{PlanningEnabled: false})

	result, err := loop.ExecuteWithPlanning(context.Background(), nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "plain answer", result.FinalText)
}
