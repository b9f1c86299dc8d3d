package cronjob

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/agentcore/internal/agentcoreerr"
	"github.com/opencode-ai/agentcore/internal/logging"
	"github.com/opencode-ai/agentcore/pkg/types"
)

func errNotFound(id string) error {
	return agentcoreerr.New(agentcoreerr.KindCronJobNotFound, "cron job "+id+" not found")
}

func errDuplicateName(name string) error {
	return agentcoreerr.New(agentcoreerr.KindCronJobDuplicateName, "cron job name "+name+" already exists")
}

// tickInterval is how often Manager scans for jobs whose next_run has
// elapsed, matching the Rust scheduler's 60-second ticker.
const tickInterval = 60 * time.Second

// Manager schedules and runs CronJobs, grounded on the Rust scheduler's
// CronManager: a store, a broadcast bus, and a background ticker that
// scans Active jobs whose next_run has elapsed.
type Manager struct {
	store Store
	bus   *bus
	log   zerolog.Logger

	now func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithStore overrides the default in-memory Store.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithNow overrides the clock, for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New builds a Manager. Call Start to begin running due jobs.
func New(opts ...Option) *Manager {
	m := &Manager{
		store: NewMemoryStore(),
		bus:   newBus(),
		log:   logging.Component("cronjob"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers for every Event this Manager publishes.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.bus.Subscribe()
}

// AddJob validates schedule via gronx, computes its first next_run, and
// adds it Active. name must be unique among jobs currently in the store.
func (m *Manager) AddJob(job types.CronJob) (types.CronJob, error) {
	if !gronx.IsValid(job.Schedule) {
		return types.CronJob{}, agentcoreerr.New(agentcoreerr.KindCronJobInvalidSchedule, "invalid cron expression: "+job.Schedule)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = types.CronJobActive
	}
	next, err := gronx.NextTickAfter(job.Schedule, m.now(), false)
	if err != nil {
		return types.CronJob{}, agentcoreerr.Wrap(agentcoreerr.KindCronJobInvalidSchedule, "computing next run", err)
	}
	job.NextRunMS = next.UnixMilli()

	if err := m.store.Add(job); err != nil {
		return types.CronJob{}, err
	}
	return job, nil
}

// GetJob returns the job with the given id.
func (m *Manager) GetJob(id string) (types.CronJob, error) {
	job, ok := m.store.Get(id)
	if !ok {
		return types.CronJob{}, errNotFound(id)
	}
	return job, nil
}

// GetJobByName returns the job with the given name.
func (m *Manager) GetJobByName(name string) (types.CronJob, error) {
	job, ok := m.store.GetByName(name)
	if !ok {
		return types.CronJob{}, agentcoreerr.New(agentcoreerr.KindCronJobNotFound, "cron job named "+name+" not found")
	}
	return job, nil
}

// ListJobs returns every job in the store, in no particular order.
func (m *Manager) ListJobs() []types.CronJob {
	return m.store.List()
}

// UpdateJob replaces the stored job with the given id's fields (schedule,
// command, working_dir, env, timeout_ms), re-validating and
// recomputing next_run if the schedule changed.
func (m *Manager) UpdateJob(job types.CronJob) (types.CronJob, error) {
	existing, ok := m.store.Get(job.ID)
	if !ok {
		return types.CronJob{}, errNotFound(job.ID)
	}
	if job.Schedule != existing.Schedule {
		if !gronx.IsValid(job.Schedule) {
			return types.CronJob{}, agentcoreerr.New(agentcoreerr.KindCronJobInvalidSchedule, "invalid cron expression: "+job.Schedule)
		}
		next, err := gronx.NextTickAfter(job.Schedule, m.now(), false)
		if err != nil {
			return types.CronJob{}, agentcoreerr.Wrap(agentcoreerr.KindCronJobInvalidSchedule, "computing next run", err)
		}
		job.NextRunMS = next.UnixMilli()
	}
	if err := m.store.Update(job); err != nil {
		return types.CronJob{}, err
	}
	return job, nil
}

// PauseJob sets a job's status to Paused so the scan loop skips it.
func (m *Manager) PauseJob(id string) error {
	return m.setStatus(id, types.CronJobPaused)
}

// ResumeJob sets a job's status back to Active and recomputes next_run
// from now, so a long-paused job doesn't immediately fire a backlog of
// missed runs.
func (m *Manager) ResumeJob(id string) error {
	job, ok := m.store.Get(id)
	if !ok {
		return errNotFound(id)
	}
	next, err := gronx.NextTickAfter(job.Schedule, m.now(), false)
	if err != nil {
		return agentcoreerr.Wrap(agentcoreerr.KindCronJobInvalidSchedule, "computing next run", err)
	}
	job.Status = types.CronJobActive
	job.NextRunMS = next.UnixMilli()
	return m.store.Update(job)
}

func (m *Manager) setStatus(id string, status types.CronJobStatus) error {
	job, ok := m.store.Get(id)
	if !ok {
		return errNotFound(id)
	}
	job.Status = status
	return m.store.Update(job)
}

// RemoveJob deletes a job and its execution history.
func (m *Manager) RemoveJob(id string) error {
	return m.store.Remove(id)
}

// GetHistory returns up to limit of the job's most recent executions,
// oldest first. limit <= 0 returns the full history.
func (m *Manager) GetHistory(jobID string, limit int) []Execution {
	return m.store.History(jobID, limit)
}

// RunJob executes job id immediately, outside its regular schedule, and
// blocks until it completes or times out.
func (m *Manager) RunJob(ctx context.Context, id string) error {
	job, ok := m.store.Get(id)
	if !ok {
		return errNotFound(id)
	}
	m.executeJob(ctx, job)
	return nil
}

// Start begins the background scan loop. It is a no-op if already
// running.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	m.bus.Publish(Event{Type: EventStarted})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.scanAndRun(runCtx)
			}
		}
	}()
}

// Stop halts the scan loop and waits for any in-flight run it started to
// return. Cancelling the loop's context also kills a command the loop
// started that is still running; a RunJob call runs under its caller's
// context and is not affected.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.bus.Publish(Event{Type: EventStopped})
}

// IsRunning reports whether the scan loop is active.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// scanAndRun runs every Active job whose next_run has elapsed, each in
// its own goroutine so a slow job doesn't delay the others.
func (m *Manager) scanAndRun(ctx context.Context) {
	now := m.now()
	for _, job := range m.store.List() {
		if job.Status != types.CronJobActive {
			continue
		}
		if job.NextRunMS > now.UnixMilli() {
			continue
		}
		job := job
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.executeJob(ctx, job)
		}()
	}
}

// executeJob runs job.Command via sh -c under job.TimeoutMS (if set),
// recording an Execution and emitting JobStarted/JobCompleted/JobFailed/
// JobTimeout, then restores the job to Active with a recomputed
// next_run, matching the Rust scheduler's execute_job.
func (m *Manager) executeJob(ctx context.Context, job types.CronJob) {
	execID := uuid.NewString()
	m.bus.Publish(Event{Type: EventJobStarted, JobID: job.ID, ExecutionID: execID})

	running := job
	running.Status = types.CronJobRunning
	_ = m.store.Update(running)

	runCtx := ctx
	var cancel context.CancelFunc
	if job.TimeoutMS > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(job.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	start := m.now()
	cmd := exec.CommandContext(runCtx, "sh", "-c", job.Command)
	cmd.Dir = job.WorkingDir
	cmd.Env = envSlice(job.Env)
	out, runErr := cmd.CombinedOutput()
	end := m.now()

	record := Execution{
		ID:        execID,
		JobID:     job.ID,
		StartedMS: start.UnixMilli(),
		EndedMS:   end.UnixMilli(),
		Output:    string(out),
	}

	final, ok := m.store.Get(job.ID)
	if !ok {
		return // job was removed mid-run
	}
	final.LastRunMS = end.UnixMilli()
	final.RunCount++

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		record.TimedOut = true
		record.Err = "timed out after " + (time.Duration(job.TimeoutMS) * time.Millisecond).String()
		final.FailCount++
		m.bus.Publish(Event{Type: EventJobTimeout, JobID: job.ID, ExecutionID: execID})
	case runErr != nil:
		record.Err = runErr.Error()
		final.FailCount++
		m.bus.Publish(Event{Type: EventJobFailed, JobID: job.ID, ExecutionID: execID, Err: runErr.Error()})
	default:
		m.bus.Publish(Event{Type: EventJobCompleted, JobID: job.ID, ExecutionID: execID})
	}
	m.store.RecordExecution(record)

	final.Status = types.CronJobActive
	if next, err := gronx.NextTickAfter(final.Schedule, end, false); err == nil {
		final.NextRunMS = next.UnixMilli()
	}
	_ = m.store.Update(final)
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
