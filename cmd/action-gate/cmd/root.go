// Package cmd provides the CLI commands for Action Gate.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/action-gate/actiongate/internal/config"
	"github.com/action-gate/actiongate/internal/domain/policy"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "action-gate",
	Short: "Action Gate - governance decision engine for agent actions",
	Long: `Action Gate evaluates side-effecting actions proposed by autonomous
agents: it previews their impact, scans inputs for prompt injection,
applies a deterministic policy, and records every decision on a
tamper-evident audit log.

Quick start:
  1. Write an actions file (JSON list of action requests)
  2. Run: action-gate ci --actions-file actions.json --policy-preset fintech

Configuration:
  Config is loaded from action-gate.yaml in the current directory,
  $HOME/.action-gate/, or /etc/action-gate/.

  Environment variables can override config values with the ACTION_GATE_ prefix.
  Example: ACTION_GATE_STORE_PATH=/var/lib/action-gate/events.db

Commands:
  ci               Evaluate a batch of actions and emit a CI report
  verify           Verify event stream integrity
  presets          List bundled policy presets
  hash-descriptor  Compute the integrity pin for a descriptor file
  version          Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./action-gate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadPolicyConfig resolves the policy source: an explicit preset flag, a
// policy file, or the configured default.
func loadPolicyConfig(cfg *config.Config, presetFlag, fileFlag string) (*policy.Config, error) {
	preset := cfg.Policy.Preset
	file := cfg.Policy.File
	if presetFlag != "" {
		preset, file = presetFlag, ""
	}
	if fileFlag != "" {
		preset, file = "", fileFlag
	}

	if file != "" {
		return policy.LoadConfigFile(file)
	}
	return policy.NewPresetRegistry().Get(preset)
}
