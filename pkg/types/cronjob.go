package types

// CronJobStatus is the lifecycle state of a CronJob, per spec.md §3.
type CronJobStatus string

const (
	CronJobActive  CronJobStatus = "active"
	CronJobPaused  CronJobStatus = "paused"
	CronJobRunning CronJobStatus = "running"
)

// CronJob is a scheduled shell command, the tuple spec.md §3 names:
// (id, name, schedule, command, working_dir, env, timeout_ms, status,
// next_run, last_run, counts). It is mentioned in the session model only
// because the Session Manager coexists with it; scheduling semantics live
// in internal/cronjob.
type CronJob struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Schedule   string            `json:"schedule"` // standard five-field cron expression
	Command    string            `json:"command"`
	WorkingDir string            `json:"working_dir"`
	Env        map[string]string `json:"env,omitempty"`
	TimeoutMS  int64             `json:"timeout_ms"`

	Status CronJobStatus `json:"status"`

	NextRunMS int64 `json:"next_run_ms,omitempty"`
	LastRunMS int64 `json:"last_run_ms,omitempty"`

	RunCount  int `json:"run_count"`
	FailCount int `json:"fail_count"`
}
