package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentcore/internal/config"
	"github.com/opencode-ai/agentcore/internal/logging"
	"github.com/opencode-ai/agentcore/internal/server"
)

var serveAddr string

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket driver and, if enabled, the cron scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: config's server.addr)")
	return cmd
}

func runServe() error {
	dir, err := resolveWorkDir()
	if err != nil {
		return err
	}

	level := logging.InfoLevel
	if verbose {
		level = logging.DebugLevel
	}
	logging.Init(logging.Config{Level: level, Pretty: true})

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr, cronMgr, err := buildManagers(ctx, cfg, dir)
	if err != nil {
		return err
	}
	if cronMgr != nil {
		defer cronMgr.Stop()
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.Server.Addr
	srv := server.New(srvCfg, mgr, cronMgr)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.Server.Addr).Msg("agentcored: listening")
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
		logging.Info().Msg("agentcored: shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	}
}
