package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/action-gate/actiongate/internal/domain/action"
)

// Evaluator applies a validated Config to evaluation inputs. The same
// config and input always produce the same Result, trace included: rule
// selection is a total order over (priority asc, specificity desc,
// declaration index asc) with no randomness and no map iteration.
type Evaluator struct {
	cfg *Config
}

// NewEvaluator wraps a config that has passed Validate.
func NewEvaluator(cfg *Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Config exposes the evaluator's configuration for provenance reporting.
func (e *Evaluator) Config() *Config {
	return e.cfg
}

// candidate is a matched rule plus its declaration index, the final
// tie-breaker.
type candidate struct {
	rule  *Rule
	index int
}

// ruleLess reports whether a should win over b. Lower priority first,
// then higher specificity, then earlier declaration.
func ruleLess(a, b candidate) bool {
	ap, bp := a.rule.EffectivePriority(), b.rule.EffectivePriority()
	if ap != bp {
		return ap < bp
	}
	as, bs := a.rule.Specificity(), b.rule.Specificity()
	if as != bs {
		return as > bs
	}
	return a.index < b.index
}

// Evaluate walks every rule in declaration order, records a trace line
// per rule, and selects the winner. When nothing matches, the config
// default applies.
func (e *Evaluator) Evaluate(in Input) Result {
	trace := make([]string, 0, len(e.cfg.Rules)+1)
	var winner *candidate

	for i := range e.cfg.Rules {
		rule := &e.cfg.Rules[i]
		if !rule.IsEnabled() {
			trace = append(trace, fmt.Sprintf("skip:%s:disabled", rule.ID))
			continue
		}
		if !matches(rule, in) {
			trace = append(trace, fmt.Sprintf("skip:%s:no-match", rule.ID))
			continue
		}
		trace = append(trace, fmt.Sprintf("match:%s:priority=%d:specificity=%d",
			rule.ID, rule.EffectivePriority(), rule.Specificity()))

		cand := candidate{rule: rule, index: i}
		if winner == nil || ruleLess(cand, *winner) {
			winner = &cand
		}
	}

	if winner == nil {
		trace = append(trace, fmt.Sprintf("default:%s:no-matching-rules", e.cfg.Defaults.Decision))
		return Result{Decision: e.cfg.Defaults.Decision, Trace: trace}
	}

	trace = append(trace, fmt.Sprintf("selected:%s:priority=%d:specificity=%d",
		winner.rule.ID, winner.rule.EffectivePriority(), winner.rule.Specificity()))
	return Result{
		Decision: winner.rule.Decision,
		Matched: &MatchedRule{
			ID:          winner.rule.ID,
			Priority:    winner.rule.EffectivePriority(),
			Specificity: winner.rule.Specificity(),
		},
		Trace: trace,
	}
}

// matches reports whether every predicate the rule declares holds for
// the input. Declared list predicates are satisfied by any element.
func matches(rule *Rule, in Input) bool {
	if len(rule.ActionTypes) > 0 && !containsType(rule.ActionTypes, in.ActionType) {
		return false
	}
	if len(rule.PathGlobs) > 0 && !anyGlobMatch(rule.globs, in.Target) {
		return false
	}
	if len(rule.TargetContains) > 0 && !anySubstring(rule.TargetContains, in.Target) {
		return false
	}
	if rule.MinRisk != nil && in.Risk.Severity() < rule.MinRisk.Severity() {
		return false
	}
	if rule.MaxRisk != nil && in.Risk.Severity() > rule.MaxRisk.Severity() {
		return false
	}
	if strings.TrimSpace(rule.Condition) != "" && !evalCondition(rule.program, in) {
		return false
	}
	return true
}

func containsType(types []action.Type, t action.Type) bool {
	for _, at := range types {
		if at == t {
			return true
		}
	}
	return false
}

// anyGlobMatch checks the target against the rule's compiled patterns.
// Config.Validate compiled them, so evaluation has no error path.
func anyGlobMatch(globs []*regexp.Regexp, target string) bool {
	for _, glob := range globs {
		if glob.MatchString(target) {
			return true
		}
	}
	return false
}

func anySubstring(needles []string, target string) bool {
	lowered := strings.ToLower(target)
	for _, needle := range needles {
		if strings.Contains(lowered, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}
