// Package queue implements the per-session command queue: a four-lane,
// priority-ordered scheduler with internal/external/hybrid handler modes,
// dead-letter retry, and observable depth/latency/throughput metrics.
package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/logging"
)

// Lane is the queue's priority class; lower values run first.
type Lane int

const (
	LaneControl  Lane = 0
	LaneQuery    Lane = 1
	LaneExecute  Lane = 2
	LaneGenerate Lane = 3
)

func (l Lane) String() string {
	switch l {
	case LaneControl:
		return "control"
	case LaneQuery:
		return "query"
	case LaneExecute:
		return "execute"
	case LaneGenerate:
		return "generate"
	default:
		return "unknown"
	}
}

// LaneOf derives a tool's lane from its name: read-family tools go to
// Query, mutating-family tools go to Execute. Control and Generate lanes
// are reserved for queue-internal and generation commands respectively,
// not tool calls, so callers that need those lanes set them explicitly.
func LaneOf(toolName string) Lane {
	switch toolName {
	case "read", "glob", "ls", "grep", "list_files", "search":
		return LaneQuery
	default:
		return LaneExecute
	}
}

// HandlerMode selects how a lane's commands are carried out.
type HandlerMode int

const (
	Internal HandlerMode = iota // core executes the command directly
	External                    // an outside process completes the task
	Hybrid                      // implementation-defined mix of the two
)

// Handler executes a Command when its lane is Internal or Hybrid-resolved
// internally. It returns the command's result or an error to retry/DLQ.
type Handler func(ctx context.Context, cmd *Command) (any, error)

// Command is one unit of queued work.
type Command struct {
	ID        string
	Lane      Lane
	Type      string
	Payload   any
	SessionID string

	enqueuedAt time.Time
	attempt    int
	index      int // heap index, maintained by container/heap

	// externalDone, when the lane resolves this command as External,
	// is closed by CompleteExternalTask to hand the result back.
	externalDone chan externalResult
}

type externalResult struct {
	value any
	err   error
}

// LaneConfig configures one lane's concurrency, handler mode, and retry
// policy.
type LaneConfig struct {
	Mode            HandlerMode
	MaxConcurrency  int64
	MaxRetries      int
	ExternalTimeout time.Duration
	Handler         Handler
}

// Config is the full per-lane configuration for a Manager.
type Config struct {
	Lanes map[Lane]LaneConfig
}

// DefaultConfig returns a Config with all four lanes Internal, modest
// concurrency, and three retries.
func DefaultConfig() Config {
	mk := func(n int64) LaneConfig {
		return LaneConfig{Mode: Internal, MaxConcurrency: n, MaxRetries: 3, ExternalTimeout: time.Minute}
	}
	return Config{Lanes: map[Lane]LaneConfig{
		LaneControl:  mk(4),
		LaneQuery:    mk(4),
		LaneExecute:  mk(2),
		LaneGenerate: mk(1),
	}}
}

// commandHeap orders pending commands by Lane (ascending = higher
// priority), then FIFO within a lane.
type commandHeap []*Command

func (h commandHeap) Len() int { return len(h) }
func (h commandHeap) Less(i, j int) bool {
	if h[i].Lane != h[j].Lane {
		return h[i].Lane < h[j].Lane
	}
	return h[i].enqueuedAt.Before(h[j].enqueuedAt)
}
func (h commandHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *commandHeap) Push(x any) {
	cmd := x.(*Command)
	cmd.index = len(*h)
	*h = append(*h, cmd)
}
func (h *commandHeap) Pop() any {
	old := *h
	n := len(old)
	cmd := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return cmd
}

// Manager is a single session's command queue.
type Manager struct {
	sessionID string
	cfg       Config
	bus       *event.Bus

	mu      sync.Mutex
	pending commandHeap
	sems    map[Lane]*semaphore.Weighted
	pump    chan struct{}

	externalMu sync.Mutex
	external   map[string]*Command

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	nextID int
}

// NewManager creates a command queue for a session. Call Start before
// enqueuing.
func NewManager(sessionID string, cfg Config, bus *event.Bus) *Manager {
	sems := make(map[Lane]*semaphore.Weighted, len(cfg.Lanes))
	for lane, lc := range cfg.Lanes {
		n := lc.MaxConcurrency
		if n < 1 {
			n = 1
		}
		sems[lane] = semaphore.NewWeighted(n)
	}
	return &Manager{
		sessionID: sessionID,
		cfg:       cfg,
		bus:       bus,
		sems:      sems,
		pump:      make(chan struct{}, 1),
		external:  make(map[string]*Command),
	}
}

// Start begins the scheduling loop. Enqueue before Start is a no-op
// queue build-up; the spec requires start_queue precede enqueues.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop signals the scheduling loop to return and waits for commands
// already dispatched to finish. Commands still pending are not run.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()
	m.wg.Wait()
}

// Enqueue schedules cmd and returns its assigned ID.
func (m *Manager) Enqueue(lane Lane, cmdType string, payload any) string {
	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("%s-cmd-%d", m.sessionID, m.nextID)
	cmd := &Command{
		ID: id, Lane: lane, Type: cmdType, Payload: payload,
		SessionID: m.sessionID, enqueuedAt: time.Now(),
	}
	heap.Push(&m.pending, cmd)
	depth := len(m.pending)
	m.mu.Unlock()

	select {
	case m.pump <- struct{}{}:
	default:
	}

	if depth > 100 && m.bus != nil {
		m.bus.Publish(event.Event{
			Type: event.QueueAlert,
			Data: event.QueueAlertData{Lane: lane.String(), Message: "queue depth high", Depth: depth},
		})
	}
	return id
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	log := logging.Component("queue")

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-m.pump:
		}

		for {
			m.mu.Lock()
			if len(m.pending) == 0 {
				m.mu.Unlock()
				break
			}
			cmd := heap.Pop(&m.pending).(*Command)
			m.mu.Unlock()

			lc, ok := m.cfg.Lanes[cmd.Lane]
			if !ok {
				log.Warn().Str("lane", cmd.Lane.String()).Msg("queue: no config for lane, dropping command")
				continue
			}
			sem := m.sems[cmd.Lane]
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			m.wg.Add(1)
			go func(cmd *Command, lc LaneConfig) {
				defer m.wg.Done()
				defer sem.Release(1)
				m.dispatch(ctx, cmd, lc)
			}(cmd, lc)
		}
	}
}

func (m *Manager) dispatch(ctx context.Context, cmd *Command, lc LaneConfig) {
	switch lc.Mode {
	case External:
		m.dispatchExternal(cmd, lc)
	default:
		m.dispatchInternal(ctx, cmd, lc)
	}
}

func (m *Manager) dispatchInternal(ctx context.Context, cmd *Command, lc LaneConfig) {
	if lc.Handler == nil {
		return
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxInt(lc.MaxRetries, 0)))
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		cmd.attempt = attempt
		_, err := lc.Handler(ctx, cmd)
		if err != nil && attempt <= lc.MaxRetries {
			if m.bus != nil {
				m.bus.Publish(event.Event{
					Type: event.CommandRetry,
					Data: event.CommandRetryData{CommandID: cmd.ID, Attempt: attempt, Err: err.Error()},
				})
			}
		}
		return err
	}, b)

	if err != nil {
		if m.bus != nil {
			m.bus.Publish(event.Event{
				Type: event.CommandDeadLettered,
				Data: event.CommandDeadLetteredData{CommandID: cmd.ID, Attempts: attempt, Err: err.Error()},
			})
		}
	}
}

func (m *Manager) dispatchExternal(cmd *Command, lc LaneConfig) {
	cmd.externalDone = make(chan externalResult, 1)
	m.externalMu.Lock()
	m.external[cmd.ID] = cmd
	m.externalMu.Unlock()

	timeout := lc.ExternalTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	if m.bus != nil {
		m.bus.Publish(event.Event{
			Type: event.ExternalTaskPending,
			Data: event.ExternalTaskPendingData{
				TaskID: cmd.ID, SessionID: m.sessionID, Lane: cmd.Lane.String(),
				CommandType: cmd.Type, Payload: cmd.Payload, TimeoutMS: timeout.Milliseconds(),
			},
		})
	}

	select {
	case res := <-cmd.externalDone:
		m.externalMu.Lock()
		delete(m.external, cmd.ID)
		m.externalMu.Unlock()
		if res.err != nil && m.bus != nil {
			m.bus.Publish(event.Event{
				Type: event.CommandDeadLettered,
				Data: event.CommandDeadLetteredData{CommandID: cmd.ID, Attempts: 1, Err: res.err.Error()},
			})
		}
	case <-time.After(timeout):
		m.externalMu.Lock()
		delete(m.external, cmd.ID)
		m.externalMu.Unlock()
		if m.bus != nil {
			m.bus.Publish(event.Event{
				Type: event.CommandDeadLettered,
				Data: event.CommandDeadLetteredData{CommandID: cmd.ID, Attempts: 1, Err: "external task timed out"},
			})
		}
	}
}

// CompleteExternalTask delivers the out-of-band result for a pending
// External-lane command, unblocking its dispatch goroutine.
func (m *Manager) CompleteExternalTask(taskID string, result any, err error) bool {
	m.externalMu.Lock()
	cmd, ok := m.external[taskID]
	m.externalMu.Unlock()
	if !ok {
		return false
	}
	if m.bus != nil {
		m.bus.Publish(event.Event{
			Type: event.ExternalTaskCompleted,
			Data: event.ExternalTaskCompletedData{TaskID: taskID, Result: result},
		})
	}
	cmd.externalDone <- externalResult{value: result, err: err}
	return true
}

// Depth returns the number of commands currently pending across all
// lanes.
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
