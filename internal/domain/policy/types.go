// Package policy contains the deterministic policy model: rules with
// match predicates, versioned configurations validated at load time, and
// an evaluator whose rule selection is a documented total order.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/action-gate/actiongate/internal/domain/action"
)

// Decision is the outcome a rule (or the config default) prescribes.
type Decision string

const (
	// DecisionAllow permits the action to proceed.
	DecisionAllow Decision = "allow"
	// DecisionDeny blocks the action.
	DecisionDeny Decision = "deny"
	// DecisionRequireApproval blocks the action pending human approval.
	DecisionRequireApproval Decision = "require_approval"
)

// knownDecisions lists valid decision values for load-time validation.
var knownDecisions = map[Decision]bool{
	DecisionAllow:           true,
	DecisionDeny:            true,
	DecisionRequireApproval: true,
}

// ParseDecision validates a raw decision string.
func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	if !knownDecisions[d] {
		return "", fmt.Errorf("unknown decision %q", s)
	}
	return d, nil
}

// Rule is a single governance rule. A rule matches an input only when
// every predicate it declares is satisfied; predicates left empty are
// vacuously satisfied.
type Rule struct {
	// ID uniquely identifies the rule within its config.
	ID string `json:"id" yaml:"id"`
	// Description is optional operator documentation.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Decision is the outcome when this rule wins.
	Decision Decision `json:"decision" yaml:"decision"`
	// Priority orders rules: lower values win. Defaults to 100 when
	// omitted; a pointer so an explicit 0 survives decoding.
	Priority *int `json:"priority,omitempty" yaml:"priority,omitempty"`
	// Enabled gates the rule; disabled rules are skipped, never matched.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// ActionTypes restricts the rule to the listed action types.
	ActionTypes []action.Type `json:"action_types,omitempty" yaml:"action_types,omitempty"`
	// PathGlobs match the target with shell-style wildcards. A `*`
	// crosses path separators, so "docs/*" covers nested paths.
	PathGlobs []string `json:"path_globs,omitempty" yaml:"path_globs,omitempty"`
	// TargetContains match the target by case-insensitive substring.
	TargetContains []string `json:"target_contains,omitempty" yaml:"target_contains,omitempty"`
	// MinRisk is the inclusive lower risk bound.
	MinRisk *action.RiskLevel `json:"min_risk_level,omitempty" yaml:"min_risk_level,omitempty"`
	// MaxRisk is the inclusive upper risk bound.
	MaxRisk *action.RiskLevel `json:"max_risk_level,omitempty" yaml:"max_risk_level,omitempty"`
	// Condition is an optional CEL expression over action_type, target,
	// risk_level, and context. Compiled at load time.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Metadata is free-form operator context.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// program is the compiled Condition, populated by Config.Validate.
	program conditionProgram
	// globs are the compiled PathGlobs, populated by Config.Validate.
	globs []*regexp.Regexp
}

// IsEnabled reports whether the rule participates in evaluation.
// Rules are enabled unless explicitly disabled.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Specificity counts the predicate kinds the rule declares. Each kind
// contributes at most 1 regardless of how many values it holds; narrower
// rules outrank broader ones at equal priority.
func (r *Rule) Specificity() int {
	spec := 0
	if len(r.ActionTypes) > 0 {
		spec++
	}
	if len(r.PathGlobs) > 0 {
		spec++
	}
	if len(r.TargetContains) > 0 {
		spec++
	}
	if r.MinRisk != nil {
		spec++
	}
	if r.MaxRisk != nil {
		spec++
	}
	if strings.TrimSpace(r.Condition) != "" {
		spec++
	}
	return spec
}

// Defaults is the behavior applied when no rule matches.
type Defaults struct {
	Decision Decision `json:"decision" yaml:"decision"`
}

// Config is a versioned, named policy configuration.
type Config struct {
	// Version identifies the policy revision for audit provenance.
	Version string `json:"version" yaml:"version"`
	// Metadata is free-form operator context.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	// Defaults apply when no rule matches.
	Defaults Defaults `json:"defaults" yaml:"defaults"`
	// Rules are evaluated in declaration order for trace output; winner
	// selection is priority, then specificity, then declaration order.
	Rules []Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// Validate checks the config's structural invariants and compiles rule
// conditions. All configuration faults surface here, at load time:
// evaluation has no error path once Validate succeeds.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("policy version is required")
	}

	if c.Defaults.Decision == "" {
		c.Defaults.Decision = DecisionRequireApproval
	}
	if _, err := ParseDecision(string(c.Defaults.Decision)); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}

	env, err := conditionEnv()
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Rules))
	for i := range c.Rules {
		rule := &c.Rules[i]
		if strings.TrimSpace(rule.ID) == "" {
			return fmt.Errorf("rule %d: id is required", i)
		}
		if seen[rule.ID] {
			return fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		seen[rule.ID] = true

		if _, err := ParseDecision(string(rule.Decision)); err != nil {
			return fmt.Errorf("rule %q: %w", rule.ID, err)
		}
		if rule.Priority == nil {
			p := defaultPriority
			rule.Priority = &p
		}

		for _, at := range rule.ActionTypes {
			if _, err := action.ParseType(string(at)); err != nil {
				return fmt.Errorf("rule %q: %w", rule.ID, err)
			}
		}
		rule.globs = make([]*regexp.Regexp, 0, len(rule.PathGlobs))
		for _, glob := range rule.PathGlobs {
			re, err := translateGlob(glob)
			if err != nil {
				return fmt.Errorf("rule %q: invalid glob %q: %w", rule.ID, glob, err)
			}
			rule.globs = append(rule.globs, re)
		}
		if rule.MinRisk != nil {
			if _, err := action.ParseRiskLevel(string(*rule.MinRisk)); err != nil {
				return fmt.Errorf("rule %q: min_risk_level: %w", rule.ID, err)
			}
		}
		if rule.MaxRisk != nil {
			if _, err := action.ParseRiskLevel(string(*rule.MaxRisk)); err != nil {
				return fmt.Errorf("rule %q: max_risk_level: %w", rule.ID, err)
			}
		}
		if rule.MinRisk != nil && rule.MaxRisk != nil &&
			rule.MaxRisk.Severity() < rule.MinRisk.Severity() {
			return fmt.Errorf("rule %q: max_risk_level %s is below min_risk_level %s",
				rule.ID, *rule.MaxRisk, *rule.MinRisk)
		}

		if strings.TrimSpace(rule.Condition) != "" {
			prg, err := compileCondition(env, rule.Condition)
			if err != nil {
				return fmt.Errorf("rule %q: %w", rule.ID, err)
			}
			rule.program = prg
		}
	}
	return nil
}

// defaultPriority matches the bundled presets' convention: rules without
// an explicit priority evaluate late.
const defaultPriority = 100

// EffectivePriority returns the rule's priority, applying the default for
// rules not yet passed through Validate.
func (r *Rule) EffectivePriority() int {
	if r.Priority == nil {
		return defaultPriority
	}
	return *r.Priority
}

// Input is the tuple a policy evaluation decides on.
type Input struct {
	ActionType action.Type
	Target     string
	Risk       action.RiskLevel
	Context    string
}

// InputFromRequest builds an evaluation input from a request and the
// effective risk level.
func InputFromRequest(req action.Request, risk action.RiskLevel) Input {
	return Input{
		ActionType: req.Type,
		Target:     req.Target,
		Risk:       risk,
		Context:    req.Context,
	}
}

// MatchedRule describes the winning rule in a Result.
type MatchedRule struct {
	ID          string `json:"id"`
	Priority    int    `json:"priority"`
	Specificity int    `json:"specificity"`
}

// Result is the outcome of one policy evaluation. Trace is an ordered,
// human-readable record of every rule considered, so a decision can be
// reproduced from the audit log.
type Result struct {
	Decision Decision     `json:"decision"`
	Matched  *MatchedRule `json:"matched_rule,omitempty"`
	Trace    []string     `json:"trace"`
}
