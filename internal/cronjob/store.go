package cronjob

import (
	"sync"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// Execution is one completed or failed run of a CronJob, mirroring the
// Rust scheduler's JobExecution record.
type Execution struct {
	ID        string `json:"id"`
	JobID     string `json:"job_id"`
	StartedMS int64  `json:"started_ms"`
	EndedMS   int64  `json:"ended_ms"`
	Output    string `json:"output,omitempty"`
	Err       string `json:"error,omitempty"`
	TimedOut  bool   `json:"timed_out"`
}

// Store persists CronJobs and their execution history. The scheduler
// talks only to this interface, matching the Rust scheduler's generic
// Arc<dyn CronStore> so a file-backed or database-backed implementation
// can replace memoryStore without touching scheduling logic.
type Store interface {
	Add(job types.CronJob) error
	Get(id string) (types.CronJob, bool)
	GetByName(name string) (types.CronJob, bool)
	List() []types.CronJob
	Update(job types.CronJob) error
	Remove(id string) error

	RecordExecution(exec Execution)
	History(jobID string, limit int) []Execution
}

// memoryStore is the process-lifetime Store every Manager uses unless a
// caller supplies a durable one, mirroring the Rust scheduler's
// MemoryCronStore.
type memoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]types.CronJob
	byName  map[string]string // name -> id
	history map[string][]Execution
}

// NewMemoryStore builds an in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{
		jobs:    make(map[string]types.CronJob),
		byName:  make(map[string]string),
		history: make(map[string][]Execution),
	}
}

func (s *memoryStore) Add(job types.CronJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[job.Name]; exists {
		return errDuplicateName(job.Name)
	}
	s.jobs[job.ID] = job
	s.byName[job.Name] = job.ID
	return nil
}

func (s *memoryStore) Get(id string) (types.CronJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

func (s *memoryStore) GetByName(name string) (types.CronJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	if !ok {
		return types.CronJob{}, false
	}
	job, ok := s.jobs[id]
	return job, ok
}

func (s *memoryStore) List() []types.CronJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.CronJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out
}

func (s *memoryStore) Update(job types.CronJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.jobs[job.ID]
	if !ok {
		return errNotFound(job.ID)
	}
	if old.Name != job.Name {
		delete(s.byName, old.Name)
		s.byName[job.Name] = job.ID
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *memoryStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return errNotFound(id)
	}
	delete(s.jobs, id)
	delete(s.byName, job.Name)
	delete(s.history, id)
	return nil
}

func (s *memoryStore) RecordExecution(exec Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[exec.JobID] = append(s.history[exec.JobID], exec)
}

func (s *memoryStore) History(jobID string, limit int) []Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.history[jobID]
	if limit <= 0 || limit >= len(all) {
		out := make([]Execution, len(all))
		copy(out, all)
		return out
	}
	start := len(all) - limit
	out := make([]Execution, limit)
	copy(out, all[start:])
	return out
}
