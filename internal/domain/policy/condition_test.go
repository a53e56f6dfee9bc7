package policy

import (
	"strings"
	"testing"

	"github.com/action-gate/actiongate/internal/domain/action"
)

func TestEvaluate_ConditionMatch(t *testing.T) {
	t.Parallel()

	cfg := mustValidate(t, &Config{
		Version:  "test-1",
		Defaults: Defaults{Decision: DecisionAllow},
		Rules: []Rule{
			{
				ID:        "deny-prod-context",
				Decision:  DecisionDeny,
				Condition: `context == "production" && target.startsWith("db/")`,
			},
		},
	})
	eval := NewEvaluator(cfg)

	res := eval.Evaluate(Input{ActionType: action.TypeDBExecute, Target: "db/users", Risk: action.RiskHigh, Context: "production"})
	if res.Decision != DecisionDeny {
		t.Errorf("Decision = %s, want deny when condition holds", res.Decision)
	}

	res = eval.Evaluate(Input{ActionType: action.TypeDBExecute, Target: "db/users", Risk: action.RiskHigh, Context: "staging"})
	if res.Decision != DecisionAllow {
		t.Errorf("Decision = %s, want allow when condition fails", res.Decision)
	}
}

func TestCompileCondition_RejectsOversizedExpression(t *testing.T) {
	t.Parallel()

	env, err := conditionEnv()
	if err != nil {
		t.Fatalf("conditionEnv() error: %v", err)
	}
	expr := `target == "` + strings.Repeat("a", maxConditionLength) + `"`
	if _, err := compileCondition(env, expr); err == nil {
		t.Error("compileCondition() accepted an oversized expression")
	}
}

func TestCompileCondition_RejectsDeepNesting(t *testing.T) {
	t.Parallel()

	env, err := conditionEnv()
	if err != nil {
		t.Fatalf("conditionEnv() error: %v", err)
	}
	expr := strings.Repeat("(", maxNestingDepth+1) + "true" + strings.Repeat(")", maxNestingDepth+1)
	if _, err := compileCondition(env, expr); err == nil {
		t.Error("compileCondition() accepted a deeply nested expression")
	}
}

func TestConditionCountsTowardSpecificity(t *testing.T) {
	t.Parallel()

	rule := Rule{
		ID:        "r",
		Decision:  DecisionDeny,
		Condition: `risk_level == "high"`,
	}
	if got := rule.Specificity(); got != 1 {
		t.Errorf("Specificity() = %d, want 1", got)
	}
}
