package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// streamChannelBuffer bounds the per-prompt event channel ExecuteStreaming
// hands back, so a burst of TextDelta events never blocks the turn loop
// on a caller that reads in bursts.
const streamChannelBuffer = 64

// Handle lets a caller wait for ExecuteStreaming's terminal result or
// cancel the in-flight generation.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	result AgentResult
	err    error
}

// Cancel aborts the in-flight generation. Safe to call more than once.
func (h *Handle) Cancel() { h.cancel() }

// Wait blocks until the generation finishes (successfully, with an
// error, or via Cancel) and returns its outcome.
func (h *Handle) Wait() (AgentResult, error) {
	<-h.done
	return h.result, h.err
}

// ExecuteStreaming runs one prompt using the LLM's streaming contract,
// forwarding TextDelta/ToolStart/ToolInputDelta/... events on the
// returned channel as they occur (spec.md §4.5.2) in addition to
// AgentConfig.Emit. The channel is closed once the terminal End/Error
// event has been delivered.
func (l *Loop) ExecuteStreaming(ctx context.Context, history []types.Message, prompt string) (<-chan event.Event, *Handle) {
	runCtx, cancel := context.WithCancel(ctx)
	out := make(chan event.Event, streamChannelBuffer)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(out)
		defer close(h.done)
		h.result, h.err = l.run(runCtx, history, prompt, out)
	}()

	return out, h
}

// streamTurn runs one turn via llm.CompleteStreaming, forwarding
// TextDelta and ToolStart immediately and accumulating
// ToolUseInputDelta per the most-recently-started tool id so the
// terminal Response carries full tool_use input, matching the
// contract's Done semantics.
func (l *Loop) streamTurn(ctx context.Context, eventsOut chan<- event.Event, messages []types.Message, system string, schemas []llmclient.ToolSchema) (llmclient.Response, error) {
	stream, err := l.llm.CompleteStreaming(ctx, llmclient.Request{Messages: messages, System: system, Tools: schemas})
	if err != nil {
		return llmclient.Response{}, err
	}

	inputs := make(map[string]*strings.Builder)
	lastToolID := ""

	for ev := range stream {
		switch ev.Kind {
		case llmclient.StreamTextDelta:
			l.pushEvent(ctx, eventsOut, event.Event{Type: event.TextDelta, Data: event.TextDeltaData{Text: ev.TextDelta}})

		case llmclient.StreamToolUseStart:
			lastToolID = ev.ToolUseID
			inputs[ev.ToolUseID] = &strings.Builder{}
			l.pushEvent(ctx, eventsOut, event.Event{
				Type: event.ToolStart,
				Data: event.ToolStartData{ID: ev.ToolUseID, Name: ev.ToolName},
			})

		case llmclient.StreamToolUseInputDelta:
			id := ev.ToolUseID
			if id == "" {
				id = lastToolID
			}
			if b, ok := inputs[id]; ok {
				b.WriteString(ev.InputDelta)
			}
			l.pushEvent(ctx, eventsOut, event.Event{
				Type: event.ToolInputDelta,
				Data: event.ToolInputDeltaData{ID: id, Delta: ev.InputDelta},
			})

		case llmclient.StreamDone:
			if ev.Final == nil {
				return llmclient.Response{}, fmt.Errorf("agentloop: stream done with no final response")
			}
			return mergeAccumulatedToolInputs(*ev.Final, inputs), nil

		case llmclient.StreamError:
			return llmclient.Response{}, ev.Err
		}
	}

	return llmclient.Response{}, fmt.Errorf("agentloop: stream closed without a terminal event")
}

// mergeAccumulatedToolInputs fills any tool_use block in resp whose
// ToolInput the provider left empty (because it only ever sent deltas)
// with the corresponding accumulated JSON.
func mergeAccumulatedToolInputs(resp llmclient.Response, inputs map[string]*strings.Builder) llmclient.Response {
	for i, b := range resp.Message.Content {
		if b.Kind != types.BlockToolUse || len(b.ToolInput) > 0 {
			continue
		}
		if acc, ok := inputs[b.ToolUseID]; ok && acc.Len() > 0 {
			resp.Message.Content[i].ToolInput = json.RawMessage(acc.String())
		}
	}
	return resp
}
