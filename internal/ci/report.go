// Package ci produces the deterministic batch evaluation report used for
// PR gate integrations: stable JSON output and fixed exit codes.
package ci

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/action-gate/actiongate/internal/domain/action"
	"github.com/action-gate/actiongate/internal/domain/governance"
	"github.com/action-gate/actiongate/internal/domain/policy"
)

// SchemaVersion tags the report layout for CI consumers.
const SchemaVersion = "1"

// Exit codes for CI integrations. Stable by contract.
const (
	ExitAllAllowed      = 0
	ExitRequireApproval = 2
	ExitDenied          = 3
	ExitError           = 4
)

// maxTopReasons caps the blocking-reason ranking.
const maxTopReasons = 10

// ActionReport is one per-action row in the report.
type ActionReport struct {
	Index               int      `json:"index"`
	ActionType          string   `json:"action_type"`
	Target              string   `json:"target"`
	RiskLevel           string   `json:"risk_level"`
	PolicyDecision      string   `json:"policy_decision"`
	PolicyMatchedRuleID *string  `json:"policy_matched_rule_id"`
	ScannerMaxSeverity  string   `json:"scanner_max_severity"`
	ScannerReasonIDs    []string `json:"scanner_reason_ids"`
}

// ReasonCount is one ranked blocking reason.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Report is the top-level CI output.
type Report struct {
	SchemaVersion      string         `json:"schema_version"`
	PolicyVersion      string         `json:"policy_version"`
	Totals             map[string]int `json:"totals"`
	TopBlockingReasons []ReasonCount  `json:"top_blocking_reasons"`
	Actions            []ActionReport `json:"actions"`
}

// LoadActions decodes a batch input: either a JSON list of action
// requests or an object with an "actions" list. Faults carry the index
// of the offending entry.
func LoadActions(data []byte) ([]action.Request, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		var wrapper struct {
			Actions []json.RawMessage `json:"actions"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil || wrapper.Actions == nil {
			return nil, fmt.Errorf("actions input must be a JSON list or an object with an 'actions' list")
		}
		list = wrapper.Actions
	}

	actions := make([]action.Request, 0, len(list))
	for i, raw := range list {
		var req action.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("action at index %d: %w", i, err)
		}
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("action at index %d: %w", i, err)
		}
		actions = append(actions, req)
	}
	return actions, nil
}

// Generate evaluates every action in order through the governance service
// and assembles the report and exit code. Evaluation is sequential so row
// order, totals, and reason ranking are reproducible.
func Generate(ctx context.Context, svc *governance.Service, actions []action.Request, cfg *policy.Config) (Report, int, error) {
	report := Report{
		SchemaVersion:      SchemaVersion,
		PolicyVersion:      cfg.Version,
		Totals:             map[string]int{"allow": 0, "require_approval": 0, "deny": 0},
		TopBlockingReasons: []ReasonCount{},
		Actions:            make([]ActionReport, 0, len(actions)),
	}
	reasonCounts := make(map[string]int)
	anyDeny, anyApproval := false, false

	for i, req := range actions {
		out, err := svc.Decide(ctx, req, cfg, "ci")
		if err != nil {
			return Report{}, ExitError, fmt.Errorf("action at index %d: %w", i, err)
		}

		decision := out.Policy.Decision
		report.Totals[string(decision)]++
		switch decision {
		case policy.DecisionDeny:
			anyDeny = true
		case policy.DecisionRequireApproval:
			anyApproval = true
		}

		reasonIDs := out.Scan.ReasonIDs()
		sort.Strings(reasonIDs)

		var matchedID *string
		if out.Policy.Matched != nil {
			id := out.Policy.Matched.ID
			matchedID = &id
		}

		if decision != policy.DecisionAllow {
			policyReason := "policy:default"
			if matchedID != nil {
				policyReason = "policy:" + *matchedID
			}
			reasonCounts[policyReason]++
			for _, rid := range reasonIDs {
				reasonCounts["scanner:"+rid]++
			}
		}

		report.Actions = append(report.Actions, ActionReport{
			Index:               i,
			ActionType:          string(req.Type),
			Target:              req.Target,
			RiskLevel:           string(out.EffectiveRisk),
			PolicyDecision:      string(decision),
			PolicyMatchedRuleID: matchedID,
			ScannerMaxSeverity:  string(out.Scan.MaxSeverity()),
			ScannerReasonIDs:    reasonIDs,
		})
	}

	report.TopBlockingReasons = rankReasons(reasonCounts)

	exitCode := ExitAllAllowed
	switch {
	case anyDeny:
		exitCode = ExitDenied
	case anyApproval:
		exitCode = ExitRequireApproval
	}
	return report, exitCode, nil
}

// rankReasons orders blocking reasons by count descending, then reason
// ascending, keeping the top ten.
func rankReasons(counts map[string]int) []ReasonCount {
	ranked := make([]ReasonCount, 0, len(counts))
	for reason, count := range counts {
		ranked = append(ranked, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Reason < ranked[j].Reason
	})
	if len(ranked) > maxTopReasons {
		ranked = ranked[:maxTopReasons]
	}
	return ranked
}

// WriteReport renders the report as indented JSON.
func WriteReport(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteError renders a structural failure in the same schema family so
// CI consumers always get JSON on stdout.
func WriteError(w io.Writer, err error) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]string{
		"schema_version": SchemaVersion,
		"error":          err.Error(),
	})
}
