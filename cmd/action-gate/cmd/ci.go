package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/action-gate/actiongate/internal/adapter/outbound/sqlite"
	"github.com/action-gate/actiongate/internal/ci"
	"github.com/action-gate/actiongate/internal/config"
	"github.com/action-gate/actiongate/internal/domain/action"
	"github.com/action-gate/actiongate/internal/domain/governance"
	"github.com/action-gate/actiongate/internal/domain/scan"
)

var (
	ciActionsFile  string
	ciPolicyPreset string
	ciPolicyFile   string
	ciOutputPath   string
)

var ciCmd = &cobra.Command{
	Use:   "ci",
	Short: "Evaluate a batch of actions and emit a CI report",
	Long: `Evaluate a JSON batch of action requests against a policy and write a
machine-readable report.

Exit codes:
  0  all actions allowed
  2  at least one action requires approval
  3  at least one action denied
  4  structural error (bad input, bad policy, storage failure)`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCI())
	},
}

func init() {
	ciCmd.Flags().StringVar(&ciActionsFile, "actions-file", "", "path to JSON file with action requests (required)")
	ciCmd.Flags().StringVar(&ciPolicyPreset, "policy-preset", "", "bundled policy preset (startup, fintech, games)")
	ciCmd.Flags().StringVar(&ciPolicyFile, "policy-file", "", "policy config file (JSON or YAML)")
	ciCmd.Flags().StringVar(&ciOutputPath, "output", "", "write the JSON report to this path (default: stdout)")
	_ = ciCmd.MarkFlagRequired("actions-file")
	rootCmd.AddCommand(ciCmd)
}

func runCI() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		ci.WriteError(os.Stdout, err)
		return ci.ExitError
	}
	logger := newLogger(cfg.LogLevel)

	data, err := os.ReadFile(ciActionsFile)
	if err != nil {
		ci.WriteError(os.Stdout, fmt.Errorf("read actions file: %w", err))
		return ci.ExitError
	}
	actions, err := ci.LoadActions(data)
	if err != nil {
		ci.WriteError(os.Stdout, err)
		return ci.ExitError
	}

	policyCfg, err := loadPolicyConfig(cfg, ciPolicyPreset, ciPolicyFile)
	if err != nil {
		ci.WriteError(os.Stdout, err)
		return ci.ExitError
	}

	store, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		ci.WriteError(os.Stdout, err)
		return ci.ExitError
	}
	defer func() { _ = store.Close() }()

	svc := governance.NewService(
		action.NewHeuristicAnalyzer(cfg.Analyzer.WorkingDirectory),
		scan.NewScanner(scan.Options{
			MaxTextChars:      cfg.Scanner.MaxTextChars,
			MaxPayloadStrings: cfg.Scanner.MaxPayloadStrings,
			MaxPayloadDepth:   cfg.Scanner.MaxPayloadDepth,
		}),
		store,
		governance.NewMetrics(prometheus.NewRegistry()),
		logger,
	)

	report, exitCode, err := ci.Generate(context.Background(), svc, actions, policyCfg)
	if err != nil {
		ci.WriteError(os.Stdout, err)
		return ci.ExitError
	}

	out := os.Stdout
	if ciOutputPath != "" {
		f, err := os.Create(ciOutputPath)
		if err != nil {
			ci.WriteError(os.Stdout, fmt.Errorf("create report file: %w", err))
			return ci.ExitError
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if err := ci.WriteReport(out, report); err != nil {
		ci.WriteError(os.Stdout, err)
		return ci.ExitError
	}
	return exitCode
}
