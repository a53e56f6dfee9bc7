package policy

import (
	"reflect"
	"strings"
	"testing"

	"github.com/action-gate/actiongate/internal/domain/action"
)

func mustValidate(t *testing.T, cfg *Config) *Config {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	return cfg
}

func TestEvaluate_DefaultWhenNothingMatches(t *testing.T) {
	t.Parallel()

	cfg := mustValidate(t, &Config{
		Version:  "test-1",
		Defaults: Defaults{Decision: DecisionRequireApproval},
		Rules: []Rule{
			{ID: "shell-only", Decision: DecisionDeny, ActionTypes: []action.Type{action.TypeShellCommand}},
		},
	})
	eval := NewEvaluator(cfg)

	res := eval.Evaluate(Input{ActionType: action.TypeFileWrite, Target: "docs/readme.md", Risk: action.RiskLow})
	if res.Decision != DecisionRequireApproval {
		t.Errorf("Decision = %s, want require_approval", res.Decision)
	}
	if res.Matched != nil {
		t.Errorf("Matched = %+v, want nil", res.Matched)
	}
	wantTrace := []string{
		"skip:shell-only:no-match",
		"default:require_approval:no-matching-rules",
	}
	if !reflect.DeepEqual(res.Trace, wantTrace) {
		t.Errorf("Trace = %v, want %v", res.Trace, wantTrace)
	}
}

func TestEvaluate_DisabledRuleIsSkipped(t *testing.T) {
	t.Parallel()

	disabled := false
	cfg := mustValidate(t, &Config{
		Version:  "test-1",
		Defaults: Defaults{Decision: DecisionAllow},
		Rules: []Rule{
			{ID: "off", Decision: DecisionDeny, Enabled: &disabled},
		},
	})
	res := NewEvaluator(cfg).Evaluate(Input{ActionType: action.TypeFileWrite, Target: "x", Risk: action.RiskLow})

	if res.Decision != DecisionAllow {
		t.Errorf("Decision = %s, want allow from defaults", res.Decision)
	}
	if res.Trace[0] != "skip:off:disabled" {
		t.Errorf("Trace[0] = %q, want skip:off:disabled", res.Trace[0])
	}
}

func TestEvaluate_PriorityWins(t *testing.T) {
	t.Parallel()

	cfg := mustValidate(t, &Config{
		Version:  "test-1",
		Defaults: Defaults{Decision: DecisionRequireApproval},
		Rules: []Rule{
			{ID: "late", Decision: DecisionAllow, Priority: intPtr(50)},
			{ID: "early", Decision: DecisionDeny, Priority: intPtr(0)},
		},
	})
	res := NewEvaluator(cfg).Evaluate(Input{ActionType: action.TypeFileWrite, Target: "x", Risk: action.RiskLow})

	if res.Decision != DecisionDeny {
		t.Errorf("Decision = %s, want deny from priority 0", res.Decision)
	}
	if res.Matched == nil || res.Matched.ID != "early" {
		t.Errorf("Matched = %+v, want rule early", res.Matched)
	}
	last := res.Trace[len(res.Trace)-1]
	if last != "selected:early:priority=0:specificity=0" {
		t.Errorf("final trace line = %q", last)
	}
}

func TestEvaluate_SpecificityBreaksPriorityTie(t *testing.T) {
	t.Parallel()

	cfg := mustValidate(t, &Config{
		Version:  "test-1",
		Defaults: Defaults{Decision: DecisionRequireApproval},
		Rules: []Rule{
			{ID: "broad", Decision: DecisionAllow, Priority: intPtr(10)},
			{
				ID:          "narrow",
				Decision:    DecisionDeny,
				Priority:    intPtr(10),
				ActionTypes: []action.Type{action.TypeFileWrite},
				PathGlobs:   []string{"src/*"},
			},
		},
	})
	res := NewEvaluator(cfg).Evaluate(Input{ActionType: action.TypeFileWrite, Target: "src/main.go", Risk: action.RiskLow})

	if res.Matched == nil || res.Matched.ID != "narrow" {
		t.Errorf("Matched = %+v, want narrow (specificity 2 over 0)", res.Matched)
	}
	if res.Matched != nil && res.Matched.Specificity != 2 {
		t.Errorf("Specificity = %d, want 2", res.Matched.Specificity)
	}
}

func TestEvaluate_DeclarationOrderBreaksFullTie(t *testing.T) {
	t.Parallel()

	cfg := mustValidate(t, &Config{
		Version:  "test-1",
		Defaults: Defaults{Decision: DecisionRequireApproval},
		Rules: []Rule{
			{ID: "first", Decision: DecisionAllow, Priority: intPtr(10), ActionTypes: []action.Type{action.TypeFileWrite}},
			{ID: "second", Decision: DecisionDeny, Priority: intPtr(10), ActionTypes: []action.Type{action.TypeFileWrite}},
		},
	})
	res := NewEvaluator(cfg).Evaluate(Input{ActionType: action.TypeFileWrite, Target: "x", Risk: action.RiskLow})

	if res.Matched == nil || res.Matched.ID != "first" {
		t.Errorf("Matched = %+v, want first (declaration order)", res.Matched)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	t.Parallel()

	reg := NewPresetRegistry()
	cfg, err := reg.Get("fintech")
	if err != nil {
		t.Fatalf("Get(fintech) error: %v", err)
	}
	eval := NewEvaluator(cfg)
	in := Input{ActionType: action.TypeFileWrite, Target: ".env.production", Risk: action.RiskCritical}

	first := eval.Evaluate(in)
	for i := 0; i < 50; i++ {
		res := eval.Evaluate(in)
		if res.Decision != first.Decision {
			t.Fatalf("run %d: Decision = %s, first run = %s", i, res.Decision, first.Decision)
		}
		if !reflect.DeepEqual(res.Trace, first.Trace) {
			t.Fatalf("run %d: trace diverged", i)
		}
	}
}

func TestEvaluate_RiskBoundsInclusive(t *testing.T) {
	t.Parallel()

	cfg := mustValidate(t, &Config{
		Version:  "test-1",
		Defaults: Defaults{Decision: DecisionDeny},
		Rules: []Rule{
			{
				ID:       "medium-band",
				Decision: DecisionAllow,
				MinRisk:  riskPtr(action.RiskMedium),
				MaxRisk:  riskPtr(action.RiskHigh),
			},
		},
	})
	eval := NewEvaluator(cfg)

	tests := []struct {
		risk action.RiskLevel
		want Decision
	}{
		{action.RiskLow, DecisionDeny},
		{action.RiskMedium, DecisionAllow},
		{action.RiskHigh, DecisionAllow},
		{action.RiskCritical, DecisionDeny},
	}
	for _, tt := range tests {
		res := eval.Evaluate(Input{ActionType: action.TypeFileWrite, Target: "x", Risk: tt.risk})
		if res.Decision != tt.want {
			t.Errorf("risk %s: Decision = %s, want %s", tt.risk, res.Decision, tt.want)
		}
	}
}

func TestEvaluate_GlobMatchesNestedPaths(t *testing.T) {
	t.Parallel()

	cfg, err := NewPresetRegistry().Get("startup")
	if err != nil {
		t.Fatalf("Get(startup) error: %v", err)
	}
	res := NewEvaluator(cfg).Evaluate(Input{
		ActionType: action.TypeFileWrite,
		Target:     "docs/guides/intro.md",
		Risk:       action.RiskLow,
	})

	if res.Decision != DecisionAllow {
		t.Fatalf("Decision = %s, want allow: %v", res.Decision, res.Trace)
	}
	if res.Matched == nil || res.Matched.ID != "allow-docs-and-tests-low-medium" {
		t.Errorf("Matched = %+v, want allow-docs-and-tests-low-medium", res.Matched)
	}
}

func TestEvaluate_TargetContainsIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	cfg := mustValidate(t, &Config{
		Version:  "test-1",
		Defaults: Defaults{Decision: DecisionAllow},
		Rules: []Rule{
			{ID: "no-secrets", Decision: DecisionDeny, TargetContains: []string{"secrets"}},
		},
	})
	res := NewEvaluator(cfg).Evaluate(Input{ActionType: action.TypeFileWrite, Target: "config/SECRETS.yaml", Risk: action.RiskLow})

	if res.Decision != DecisionDeny {
		t.Errorf("Decision = %s, want deny on case-insensitive substring", res.Decision)
	}
}

func TestEvaluate_TraceCoversEveryRule(t *testing.T) {
	t.Parallel()

	reg := NewPresetRegistry()
	cfg, err := reg.Get("startup")
	if err != nil {
		t.Fatalf("Get(startup) error: %v", err)
	}
	res := NewEvaluator(cfg).Evaluate(Input{ActionType: action.TypeShellCommand, Target: "make build", Risk: action.RiskHigh})

	// One line per rule plus the selection line.
	if len(res.Trace) != len(cfg.Rules)+1 {
		t.Fatalf("Trace has %d lines, want %d: %v", len(res.Trace), len(cfg.Rules)+1, res.Trace)
	}
	if !strings.HasPrefix(res.Trace[len(res.Trace)-1], "selected:require-approval-shell:") {
		t.Errorf("final trace line = %q", res.Trace[len(res.Trace)-1])
	}
}
