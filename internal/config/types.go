package config

import "time"

// ProviderConfig holds credentials and defaults for a single LLM provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key" json:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

// PermissionRuleConfig mirrors a single permission.Rule as read from file.
type PermissionRuleConfig struct {
	Tool       string `yaml:"tool" json:"tool"`
	ArgPattern string `yaml:"arg_pattern,omitempty" json:"arg_pattern,omitempty"`
	Action     string `yaml:"action" json:"action"` // allow | deny | ask
}

// PermissionConfig seeds the permission policy a new session starts with.
type PermissionConfig struct {
	Default string                 `yaml:"default" json:"default"` // allow | deny | ask
	Rules   []PermissionRuleConfig `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// HITLConfig controls the confirmation manager's default timeout behavior.
type HITLConfig struct {
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	TimeoutAction string        `yaml:"timeout_action" json:"timeout_action"` // reject | auto_approve
	Yolo          bool          `yaml:"yolo" json:"yolo"`
}

// QueueConfig sets per-lane concurrency for the session command queue.
type QueueConfig struct {
	ControlConcurrency  int `yaml:"control_concurrency" json:"control_concurrency"`
	QueryConcurrency    int `yaml:"query_concurrency" json:"query_concurrency"`
	ExecuteConcurrency  int `yaml:"execute_concurrency" json:"execute_concurrency"`
	GenerateConcurrency int `yaml:"generate_concurrency" json:"generate_concurrency"`
	MaxRetries          int `yaml:"max_retries" json:"max_retries"`
}

// CompactionConfig tunes the auto-compaction algorithm's thresholds.
type CompactionConfig struct {
	TriggerPercent float64 `yaml:"trigger_percent" json:"trigger_percent"`
	KeepHead       int     `yaml:"keep_head" json:"keep_head"`
	KeepTail       int     `yaml:"keep_tail" json:"keep_tail"`
}

// StoreConfig selects and configures the session persistence backend.
type StoreConfig struct {
	Backend     string `yaml:"backend" json:"backend"` // memory | file | postgres
	Dir         string `yaml:"dir,omitempty" json:"dir,omitempty"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty" json:"postgres_dsn,omitempty"`
}

// CronConfig enables the scheduled-job subsystem.
type CronConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// ServerConfig configures the HTTP/WebSocket driver.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Config is the complete engine configuration, assembled from defaults,
// file, and environment sources by Load.
type Config struct {
	Model      string                    `yaml:"model" json:"model"`
	SmallModel string                    `yaml:"small_model" json:"small_model"`
	Provider   map[string]ProviderConfig `yaml:"provider" json:"provider"`

	Permission PermissionConfig `yaml:"permission" json:"permission"`
	HITL       HITLConfig       `yaml:"hitl" json:"hitl"`
	Queue      QueueConfig      `yaml:"queue" json:"queue"`
	Compaction CompactionConfig `yaml:"compaction" json:"compaction"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Cron       CronConfig       `yaml:"cron" json:"cron"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	MaxRounds  int              `yaml:"max_rounds" json:"max_rounds"`
}

// Default returns the configuration a fresh installation starts with.
func Default() *Config {
	return &Config{
		Model:      "anthropic/claude-sonnet-4-5",
		SmallModel: "anthropic/claude-haiku-4-5",
		Provider:   make(map[string]ProviderConfig),
		Permission: PermissionConfig{Default: "ask"},
		HITL: HITLConfig{
			Timeout:       2 * time.Minute,
			TimeoutAction: "reject",
		},
		Queue: QueueConfig{
			ControlConcurrency:  4,
			QueryConcurrency:    4,
			ExecuteConcurrency:  2,
			GenerateConcurrency: 1,
			MaxRetries:          3,
		},
		Compaction: CompactionConfig{
			TriggerPercent: 0.85,
			KeepHead:       2,
			KeepTail:       20,
		},
		Store: StoreConfig{
			Backend: "file",
			Dir:     GetPaths().StoragePath(),
		},
		Cron:      CronConfig{Enabled: false},
		Server:    ServerConfig{Addr: ":4096"},
		MaxRounds: 50,
	}
}
