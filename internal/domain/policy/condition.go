package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// maxConditionLength is the maximum allowed length for rule conditions.
const maxConditionLength = 1024

// maxCostBudget is the CEL runtime cost limit, bounding pathological
// expressions that would otherwise exhaust the evaluator.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// conditionProgram is a compiled rule condition ready for evaluation.
type conditionProgram = cel.Program

// conditionEnv builds the CEL environment rule conditions compile against.
// Conditions see the same four variables evaluation matches on.
func conditionEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("action_type", cel.StringType),
		cel.Variable("target", cel.StringType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("context", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create condition environment: %w", err)
	}
	return env, nil
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("condition nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// compileCondition parses, type-checks, and bounds a rule condition. The
// expression must produce a boolean.
func compileCondition(env *cel.Env, expr string) (conditionProgram, error) {
	if len(expr) > maxConditionLength {
		return nil, fmt.Errorf("condition too long: %d characters (max %d)", len(expr), maxConditionLength)
	}
	if err := validateNesting(expr); err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid condition: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("condition must evaluate to a boolean, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("compile condition: %w", err)
	}
	return prg, nil
}

// evalCondition runs a compiled condition against an input. Evaluation
// faults (cost budget exhausted, cancellation) report as a non-match so a
// broken condition never widens a rule's reach.
func evalCondition(prg conditionProgram, in Input) bool {
	if prg == nil {
		return true
	}
	out, _, err := prg.Eval(map[string]any{
		"action_type": string(in.ActionType),
		"target":      in.Target,
		"risk_level":  string(in.Risk),
		"context":     in.Context,
	})
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}
