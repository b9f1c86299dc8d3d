package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

var (
	workDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "agentcored",
	Short: "agentcored — agent engine daemon",
	Long:  "agentcored runs the agent engine's HTTP/WebSocket driver and scheduled cron jobs over a directory of sessions.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "d", "", "working directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("agentcored %s\n", Version)
		},
	}
}

func resolveWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return os.Getwd()
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
