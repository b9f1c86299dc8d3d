package main

import (
	"context"
	"fmt"

	"github.com/opencode-ai/agentcore/internal/config"
	"github.com/opencode-ai/agentcore/internal/cronjob"
	"github.com/opencode-ai/agentcore/internal/hitl"
	"github.com/opencode-ai/agentcore/internal/llmclient"
	"github.com/opencode-ai/agentcore/internal/logging"
	"github.com/opencode-ai/agentcore/internal/queue"
	"github.com/opencode-ai/agentcore/internal/sessionmgr"
	"github.com/opencode-ai/agentcore/internal/store"
	"github.com/opencode-ai/agentcore/internal/store/postgres"
)

// buildStore opens the session store cfg.Store.Backend names.
func buildStore(ctx context.Context, cfg *config.Config) (store.SessionStore, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "file":
		return store.NewFileStore(cfg.Store.Dir)
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildRegistry wires the "anthropic" provider entry into a Registry,
// skipping it rather than failing startup when it has no API key. Other
// provider entries in the config are not registered.
func buildRegistry(cfg *config.Config) *llmclient.Registry {
	reg := llmclient.NewRegistry()
	if p, ok := cfg.Provider["anthropic"]; ok && p.APIKey != "" {
		client, err := llmclient.NewAnthropicClient(llmclient.AnthropicConfig{
			APIKey:       p.APIKey,
			BaseURL:      p.BaseURL,
			DefaultModel: cfg.Model,
		})
		if err != nil {
			logging.Error().Err(err).Msg("agentcored: anthropic client init failed")
		} else {
			reg.Register("anthropic", client, nil)
		}
	}
	return reg
}

func hitlTimeoutAction(s string) hitl.TimeoutAction {
	if s == string(hitl.TimeoutAutoApprove) {
		return hitl.TimeoutAutoApprove
	}
	return hitl.TimeoutReject
}

func queueConfigFrom(cfg config.QueueConfig) queue.Config {
	mk := func(n int) queue.LaneConfig {
		return queue.LaneConfig{Mode: queue.Internal, MaxConcurrency: int64(n), MaxRetries: cfg.MaxRetries}
	}
	return queue.Config{Lanes: map[queue.Lane]queue.LaneConfig{
		queue.LaneControl:  mk(cfg.ControlConcurrency),
		queue.LaneQuery:    mk(cfg.QueryConcurrency),
		queue.LaneExecute:  mk(cfg.ExecuteConcurrency),
		queue.LaneGenerate: mk(cfg.GenerateConcurrency),
	}}
}

// buildManagers assembles the sessionmgr.Manager (and, if enabled, the
// cronjob.Manager) a serve run needs from the loaded Config.
func buildManagers(ctx context.Context, cfg *config.Config, workDir string) (*sessionmgr.Manager, *cronjob.Manager, error) {
	sessStore, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	mgr := sessionmgr.New(sessionmgr.Config{
		Store:       sessStore,
		LLMRegistry: buildRegistry(cfg),
		DefaultHITLConfig: hitl.Config{
			Enabled:        true,
			DefaultTimeout: cfg.HITL.Timeout,
			TimeoutAction:  hitlTimeoutAction(cfg.HITL.TimeoutAction),
			YoloLanes:      map[string]bool{"execute": cfg.HITL.Yolo},
			LaneOf:         func(string) string { return "" },
		},
		DefaultQueueConfig: queueConfigFrom(cfg.Queue),
		DefaultAutoCompact: true,
		WorkDir:            workDir,
	})

	if err := mgr.LoadAllSessions(ctx); err != nil {
		logging.Warn().Err(err).Msg("agentcored: failed to rehydrate some sessions")
	}

	var cronMgr *cronjob.Manager
	if cfg.Cron.Enabled {
		cronMgr = cronjob.New()
		cronMgr.Start(ctx)
	}

	return mgr, cronMgr, nil
}
