// Package scan provides the prompt-injection and risky-instruction
// scanner. Scanning is deliberately bounded: text length, payload string
// count, and payload depth are all capped so untrusted input cannot make
// a scan unpredictable in time or memory.
package scan

import (
	"fmt"

	"github.com/action-gate/actiongate/internal/domain/action"
)

// Severity grades a scanner finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityOrder = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Order returns the severity's rank on the low<medium<high<critical scale.
func (s Severity) Order() int {
	return severityOrder[s]
}

// RiskLevel maps a severity onto the action risk scale.
func (s Severity) RiskLevel() action.RiskLevel {
	switch s {
	case SeverityMedium:
		return action.RiskMedium
	case SeverityHigh:
		return action.RiskHigh
	case SeverityCritical:
		return action.RiskCritical
	default:
		return action.RiskLow
	}
}

// Finding is a single scanner hit with a machine-readable reason id.
type Finding struct {
	// ReasonID names the rule that fired, e.g.
	// "prompt_injection.ignore_instructions".
	ReasonID string `json:"reason_id"`
	// Severity grades the finding.
	Severity Severity `json:"severity"`
	// Message is the rule's human-readable description.
	Message string `json:"message"`
	// Field names the scanned location, e.g. "description" or
	// "payload.steps[2].note".
	Field string `json:"field"`
	// Snippet is the matched text, trimmed and capped.
	Snippet string `json:"snippet"`
}

// Result is the outcome of one scan.
type Result struct {
	Findings []Finding `json:"findings"`
}

// MaxSeverity returns the highest severity across findings. A clean
// result reports low.
func (r Result) MaxSeverity() Severity {
	max := SeverityLow
	for _, f := range r.Findings {
		if f.Severity.Order() > max.Order() {
			max = f.Severity
		}
	}
	return max
}

// MaxRiskLevel returns the risk level implied by the worst finding.
func (r Result) MaxRiskLevel() action.RiskLevel {
	return r.MaxSeverity().RiskLevel()
}

// RiskFactors renders findings in the preview's risk-factor format.
func (r Result) RiskFactors() []string {
	factors := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		factors = append(factors, fmt.Sprintf("[%s] %s", f.ReasonID, f.Message))
	}
	return factors
}

// ReasonIDs returns the distinct reason ids across findings, in first-seen
// order.
func (r Result) ReasonIDs() []string {
	seen := make(map[string]bool, len(r.Findings))
	ids := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		if !seen[f.ReasonID] {
			seen[f.ReasonID] = true
			ids = append(ids, f.ReasonID)
		}
	}
	return ids
}
