package action

import (
	"context"
	"fmt"
	"strings"
)

// Analyzer produces an impact preview for a proposed action.
// Implementations must be deterministic for identical filesystem state and
// request content: the preview feeds audited, reproducible decisions.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Preview, error)
}

// sensitiveTargetPatterns indicate secrets or credentials in a target.
// Matching is case-insensitive substring, like the tool risk classifier.
var sensitiveTargetPatterns = []string{
	".env", ".ssh", "id_rsa", "credentials", "secrets",
	"password", ".pem", "api_key", "secret_key", "token",
}

// productionTargetPatterns indicate production or system scope.
var productionTargetPatterns = []string{
	"prod", "production", "/etc/", "/usr/", "/bin/", "/boot/",
}

// safeTargetPrefixes are workspace areas where writes are routine.
var safeTargetPrefixes = []string{
	"docs/", "tests/", "assets/", "examples/",
}

// destructiveCommandPatterns indicate commands with irreversible effect.
var destructiveCommandPatterns = []string{
	"rm -rf", "mkfs", "dd if=", "drop table", "truncate table", "shutdown",
}

// HeuristicAnalyzer is the bundled Analyzer implementation. It classifies
// risk from the action type and target shape alone; it never executes or
// simulates the proposed action.
type HeuristicAnalyzer struct {
	// WorkingDirectory is the base for resolving relative paths in
	// previews. Informational only; the analyzer does not touch the
	// filesystem.
	WorkingDirectory string
}

// NewHeuristicAnalyzer creates an analyzer rooted at workingDirectory.
func NewHeuristicAnalyzer(workingDirectory string) *HeuristicAnalyzer {
	return &HeuristicAnalyzer{WorkingDirectory: workingDirectory}
}

// Analyze classifies the request into a baseline risk level with supporting
// risk factors, a reversibility flag, and a file-change preview.
func (a *HeuristicAnalyzer) Analyze(_ context.Context, req Request) (Preview, error) {
	if err := req.Validate(); err != nil {
		return Preview{}, fmt.Errorf("analyze: %w", err)
	}

	target := strings.ToLower(req.Target)
	preview := Preview{Risk: RiskLow, Reversible: true}

	switch req.Type {
	case TypeFileCreate:
		preview.FileChanges = []FileChange{{Path: req.Target, ChangeType: ChangeCreate}}
	case TypeFileWrite:
		preview.Risk = RiskMedium
		preview.RiskFactors = append(preview.RiskFactors, "modifies an existing file")
		preview.FileChanges = []FileChange{{Path: req.Target, ChangeType: ChangeModify}}
	case TypeFileDelete:
		preview.Risk = RiskHigh
		preview.Reversible = false
		preview.RiskFactors = append(preview.RiskFactors, "deletes a file; contents are not recoverable")
		preview.FileChanges = []FileChange{{Path: req.Target, ChangeType: ChangeDelete}}
	case TypeShellCommand:
		preview.Risk = RiskHigh
		preview.Reversible = false
		preview.RiskFactors = append(preview.RiskFactors, "arbitrary shell command execution")
	case TypeDBExecute:
		preview.Risk = RiskHigh
		preview.Reversible = false
		preview.RiskFactors = append(preview.RiskFactors, "database mutation")
	case TypeAPICall:
		preview.Risk = RiskMedium
		preview.Reversible = false
		preview.RiskFactors = append(preview.RiskFactors, "external API side effects")
	}

	for _, pattern := range sensitiveTargetPatterns {
		if strings.Contains(target, pattern) {
			preview.Risk = MaxRisk(preview.Risk, RiskCritical)
			preview.RiskFactors = append(preview.RiskFactors,
				fmt.Sprintf("target matches sensitive pattern %q", pattern))
			break
		}
	}

	for _, pattern := range productionTargetPatterns {
		if strings.Contains(target, pattern) {
			preview.Risk = MaxRisk(preview.Risk, RiskHigh)
			preview.RiskFactors = append(preview.RiskFactors,
				fmt.Sprintf("target matches production/system pattern %q", pattern))
			break
		}
	}

	if req.Type == TypeShellCommand || req.Type == TypeDBExecute {
		for _, pattern := range destructiveCommandPatterns {
			if strings.Contains(target, pattern) {
				preview.Risk = RiskCritical
				preview.RiskFactors = append(preview.RiskFactors,
					fmt.Sprintf("destructive pattern %q in command", pattern))
				break
			}
		}
	}

	// Routine workspace writes stay low risk unless something above
	// already escalated them.
	if (req.Type == TypeFileWrite || req.Type == TypeFileCreate) && preview.Risk == RiskMedium {
		for _, prefix := range safeTargetPrefixes {
			if strings.HasPrefix(target, prefix) {
				preview.Risk = RiskLow
				break
			}
		}
	}

	if !preview.Reversible {
		preview.Warnings = append(preview.Warnings, "this action cannot be automatically undone")
	}

	return preview, nil
}

// Compile-time interface verification.
var _ Analyzer = (*HeuristicAnalyzer)(nil)
