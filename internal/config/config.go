package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/agentcore/internal/logging"
)

// Load loads configuration from multiple sources (priority order):
//  1. Defaults
//  2. Global config (~/.config/agentcore/agentcore.yaml)
//  3. Project config (<directory>/.agentcore/agentcore.yaml)
//  4. .env file in directory (via godotenv, merged into process environment)
//  5. Environment variables
func Load(directory string) (*Config, error) {
	cfg := Default()

	loadConfigFile(GlobalConfigPath(), cfg)
	if directory != "" {
		loadConfigFile(ProjectConfigPath(directory), cfg)
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadConfigFile merges a single YAML config file into cfg, ignoring a
// missing file. A present-but-invalid file returns its parse error.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		logging.Error().Err(err).Str("path", path).Msg("config: failed to parse file, skipping")
		return err
	}

	mergeConfig(cfg, &file)
	return nil
}

// mergeConfig overlays non-zero fields of source onto target.
func mergeConfig(target, source *Config) {
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.SmallModel != "" {
		target.SmallModel = source.SmallModel
	}
	for k, v := range source.Provider {
		if target.Provider == nil {
			target.Provider = make(map[string]ProviderConfig)
		}
		target.Provider[k] = v
	}
	if source.Permission.Default != "" {
		target.Permission.Default = source.Permission.Default
	}
	if len(source.Permission.Rules) > 0 {
		target.Permission.Rules = source.Permission.Rules
	}
	if source.HITL.Timeout > 0 {
		target.HITL.Timeout = source.HITL.Timeout
	}
	if source.HITL.TimeoutAction != "" {
		target.HITL.TimeoutAction = source.HITL.TimeoutAction
	}
	target.HITL.Yolo = target.HITL.Yolo || source.HITL.Yolo
	if source.Queue.ControlConcurrency > 0 {
		target.Queue.ControlConcurrency = source.Queue.ControlConcurrency
	}
	if source.Queue.QueryConcurrency > 0 {
		target.Queue.QueryConcurrency = source.Queue.QueryConcurrency
	}
	if source.Queue.ExecuteConcurrency > 0 {
		target.Queue.ExecuteConcurrency = source.Queue.ExecuteConcurrency
	}
	if source.Queue.GenerateConcurrency > 0 {
		target.Queue.GenerateConcurrency = source.Queue.GenerateConcurrency
	}
	if source.Queue.MaxRetries > 0 {
		target.Queue.MaxRetries = source.Queue.MaxRetries
	}
	if source.Compaction.TriggerPercent > 0 {
		target.Compaction.TriggerPercent = source.Compaction.TriggerPercent
	}
	if source.Compaction.KeepHead > 0 {
		target.Compaction.KeepHead = source.Compaction.KeepHead
	}
	if source.Compaction.KeepTail > 0 {
		target.Compaction.KeepTail = source.Compaction.KeepTail
	}
	if source.Store.Backend != "" {
		target.Store.Backend = source.Store.Backend
	}
	if source.Store.Dir != "" {
		target.Store.Dir = source.Store.Dir
	}
	if source.Store.PostgresDSN != "" {
		target.Store.PostgresDSN = source.Store.PostgresDSN
	}
	target.Cron.Enabled = target.Cron.Enabled || source.Cron.Enabled
	if source.Server.Addr != "" {
		target.Server.Addr = source.Server.Addr
	}
	if source.MaxRounds > 0 {
		target.MaxRounds = source.MaxRounds
	}
}

// applyEnvOverrides applies environment variable overrides. The provider
// API-key variables only fill a key the file left empty; the other
// variables take precedence over file-sourced values.
func applyEnvOverrides(cfg *Config) {
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"google":    "GOOGLE_API_KEY",
		"bedrock":   "AWS_ACCESS_KEY_ID",
	}
	for provider, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			if cfg.Provider == nil {
				cfg.Provider = make(map[string]ProviderConfig)
			}
			p := cfg.Provider[provider]
			if p.APIKey == "" {
				p.APIKey = apiKey
				cfg.Provider[provider] = p
			}
		}
	}

	if model := os.Getenv("AGENTCORE_MODEL"); model != "" {
		cfg.Model = model
	}
	if smallModel := os.Getenv("AGENTCORE_SMALL_MODEL"); smallModel != "" {
		cfg.SmallModel = smallModel
	}
	if dsn := os.Getenv("AGENTCORE_POSTGRES_DSN"); dsn != "" {
		cfg.Store.Backend = "postgres"
		cfg.Store.PostgresDSN = dsn
	}
	if addr := os.Getenv("AGENTCORE_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if os.Getenv("AGENTCORE_YOLO") == "1" {
		cfg.HITL.Yolo = true
	}
}

// Save writes cfg as YAML to path, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
