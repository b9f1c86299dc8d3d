package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/internal/event"
)

func TestLaneOfMapsToolsByFamily(t *testing.T) {
	assert.Equal(t, LaneQuery, LaneOf("read"))
	assert.Equal(t, LaneQuery, LaneOf("grep"))
	assert.Equal(t, LaneExecute, LaneOf("bash"))
	assert.Equal(t, LaneExecute, LaneOf("write"))
}

func TestManagerRunsInternalCommand(t *testing.T) {
	var ran int32
	cfg := DefaultConfig()
	lc := cfg.Lanes[LaneExecute]
	lc.Handler = func(_ context.Context, _ *Command) (any, error) {
		atomic.AddInt32(&ran, 1)
		return "ok", nil
	}
	cfg.Lanes[LaneExecute] = lc

	m := NewManager("s1", cfg, nil)
	m.Start(context.Background())
	defer m.Stop()

	m.Enqueue(LaneExecute, "tool_call", nil)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&ran) == 1 }, time.Second, 5*time.Millisecond)
}

func TestManagerRetriesThenDeadLetters(t *testing.T) {
	var attempts int32
	cfg := DefaultConfig()
	lc := cfg.Lanes[LaneExecute]
	lc.MaxRetries = 2
	lc.Handler = func(_ context.Context, _ *Command) (any, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("boom")
	}
	cfg.Lanes[LaneExecute] = lc

	bus := event.NewBus()
	var retries, deadLetters int32
	bus.SubscribeAll(func(ev event.Event) {
		switch ev.Type {
		case event.CommandRetry:
			atomic.AddInt32(&retries, 1)
		case event.CommandDeadLettered:
			atomic.AddInt32(&deadLetters, 1)
		}
	})

	m := NewManager("s1", cfg, bus)
	m.Start(context.Background())
	defer m.Stop()

	m.Enqueue(LaneExecute, "tool_call", nil)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&deadLetters) == 1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&attempts)), 3)
	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&retries)), 1)
}

func TestExternalLaneRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	lc := cfg.Lanes[LaneExecute]
	lc.Mode = External
	lc.ExternalTimeout = time.Second
	cfg.Lanes[LaneExecute] = lc

	bus := event.NewBus()
	pendingCh := make(chan event.ExternalTaskPendingData, 1)
	bus.SubscribeAll(func(ev event.Event) {
		if ev.Type == event.ExternalTaskPending {
			pendingCh <- ev.Data.(event.ExternalTaskPendingData)
		}
	})

	m := NewManager("s1", cfg, bus)
	m.Start(context.Background())
	defer m.Stop()

	id := m.Enqueue(LaneExecute, "external_build", map[string]any{"target": "all"})

	var pending event.ExternalTaskPendingData
	select {
	case pending = <-pendingCh:
	case <-time.After(time.Second):
		t.Fatal("did not observe ExternalTaskPending")
	}
	assert.Equal(t, id, pending.TaskID)

	ok := m.CompleteExternalTask(id, "build finished", nil)
	assert.True(t, ok)
}

func TestExternalLaneTimesOutAndDeadLetters(t *testing.T) {
	cfg := DefaultConfig()
	lc := cfg.Lanes[LaneExecute]
	lc.Mode = External
	lc.ExternalTimeout = 20 * time.Millisecond
	cfg.Lanes[LaneExecute] = lc

	bus := event.NewBus()
	var deadLettered int32
	bus.SubscribeAll(func(ev event.Event) {
		if ev.Type == event.CommandDeadLettered {
			atomic.AddInt32(&deadLettered, 1)
		}
	})

	m := NewManager("s1", cfg, bus)
	m.Start(context.Background())
	defer m.Stop()

	m.Enqueue(LaneExecute, "external_build", nil)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&deadLettered) == 1 }, time.Second, 5*time.Millisecond)
}
