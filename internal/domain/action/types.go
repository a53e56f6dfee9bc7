// Package action defines the proposed-action type system: the request an
// agent submits for governance, the impact preview produced for it, and
// the ordered risk scale shared by the scanner and policy evaluator.
package action

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Type categorizes the kind of side-effecting operation being proposed.
type Type string

const (
	// TypeFileWrite represents modifying an existing file.
	TypeFileWrite Type = "file_write"
	// TypeFileCreate represents creating a new file.
	TypeFileCreate Type = "file_create"
	// TypeFileDelete represents deleting a file.
	TypeFileDelete Type = "file_delete"
	// TypeShellCommand represents executing a shell command.
	TypeShellCommand Type = "shell_command"
	// TypeDBExecute represents executing a database mutation.
	TypeDBExecute Type = "db_execute"
	// TypeAPICall represents calling an external API.
	TypeAPICall Type = "api_call"
)

// String returns the string representation of the Type.
func (t Type) String() string {
	return string(t)
}

// knownTypes lists every valid action type for boundary validation.
var knownTypes = map[Type]bool{
	TypeFileWrite:    true,
	TypeFileCreate:   true,
	TypeFileDelete:   true,
	TypeShellCommand: true,
	TypeDBExecute:    true,
	TypeAPICall:      true,
}

// ParseType validates a raw action type string at the input boundary.
// Unknown values are rejected before they can enter the engine.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !knownTypes[t] {
		return "", fmt.Errorf("unknown action type %q", s)
	}
	return t, nil
}

// RiskLevel classifies the potential blast radius of a proposed action.
// The scale is totally ordered: low < medium < high < critical.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// String returns the string representation of the RiskLevel.
func (r RiskLevel) String() string {
	return string(r)
}

// riskSeverity maps each level to its position on the ordered scale.
var riskSeverity = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Severity returns the position of r on the ordered risk scale.
// Unknown levels rank below low; ParseRiskLevel keeps them out.
func (r RiskLevel) Severity() int {
	sev, ok := riskSeverity[r]
	if !ok {
		return -1
	}
	return sev
}

// ParseRiskLevel validates a raw risk level string at the input boundary.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := riskSeverity[r]; !ok {
		return "", fmt.Errorf("unknown risk level %q", s)
	}
	return r, nil
}

// MaxRisk returns the higher of two risk levels.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// ApprovalStatus tracks an action through its governance lifecycle.
type ApprovalStatus string

const (
	// StatusPending means the action awaits a human decision.
	StatusPending ApprovalStatus = "pending"
	// StatusApproved means the action may be executed.
	StatusApproved ApprovalStatus = "approved"
	// StatusRejected means the action was denied.
	StatusRejected ApprovalStatus = "rejected"
	// StatusExecuted means the approved action was carried out.
	StatusExecuted ApprovalStatus = "executed"
	// StatusFailed means execution was attempted and failed.
	StatusFailed ApprovalStatus = "failed"
)

// Options carries caller preferences attached to a request.
type Options struct {
	// TimeoutSeconds bounds how long the caller waits for approval (0 = default).
	TimeoutSeconds int `json:"timeout_seconds,omitempty" validate:"gte=0"`
	// AutoApproveLowRisk requests automatic approval when the effective
	// risk is low and policy allows the action.
	AutoApproveLowRisk bool `json:"auto_approve_low_risk,omitempty"`
	// CallbackURL is notified when the action's status changes.
	CallbackURL string `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// Request is a proposed side-effecting operation submitted for governance.
type Request struct {
	// ID uniquely identifies the proposal. Assigned by the orchestrator
	// when empty.
	ID string `json:"id,omitempty"`
	// AgentID identifies the proposing agent (opaque, supplied by the
	// external identity layer).
	AgentID string `json:"agent_id,omitempty"`
	// Type categorizes the operation.
	Type Type `json:"action_type" validate:"required"`
	// Description is the agent's human-readable intent.
	Description string `json:"description" validate:"required"`
	// Target is the path, command, or query the action operates on.
	Target string `json:"target" validate:"required"`
	// Payload carries action-specific structured data (file content,
	// command args, query params). Shape is attacker-controlled.
	Payload map[string]any `json:"payload,omitempty"`
	// Context is optional free-text context from the agent.
	Context string `json:"context,omitempty"`
	// Options carries caller preferences.
	Options Options `json:"options,omitempty"`
}

// requestValidator enforces the struct tags on Request and Options.
var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks request fields at the input boundary.
func (r *Request) Validate() error {
	if _, err := ParseType(string(r.Type)); err != nil {
		return err
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(r.Target) == "" {
		return fmt.Errorf("target is required")
	}
	if err := requestValidator.Struct(r); err != nil {
		return formatRequestError(err)
	}
	return nil
}

// formatRequestError converts tag failures into boundary messages using
// the request's wire field names.
func formatRequestError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}
	e := validationErrors[0]
	switch e.Field() {
	case "TimeoutSeconds":
		return fmt.Errorf("timeout_seconds cannot be negative")
	case "CallbackURL":
		return fmt.Errorf("callback_url %q is not a valid URL", e.Value())
	default:
		return fmt.Errorf("%s failed %s validation", e.Field(), e.Tag())
	}
}

// ChangeType categorizes a previewed file change.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeModify ChangeType = "modify"
	ChangeDelete ChangeType = "delete"
)

// FileChange describes one file affected by a proposed action.
type FileChange struct {
	// Path is the affected file path.
	Path string `json:"path"`
	// ChangeType is create, modify, or delete.
	ChangeType ChangeType `json:"change_type"`
	// Summary is a one-line human description of the change.
	Summary string `json:"summary,omitempty"`
	// Additions is the number of lines added (0 when unknown).
	Additions int `json:"additions,omitempty"`
	// Deletions is the number of lines removed (0 when unknown).
	Deletions int `json:"deletions,omitempty"`
}

// Preview is the impact analysis for a proposed action.
type Preview struct {
	// Risk is the analyst-assigned baseline risk level.
	Risk RiskLevel `json:"risk_level"`
	// RiskFactors are human-readable reasons contributing to the risk.
	RiskFactors []string `json:"risk_factors,omitempty"`
	// Warnings are non-blocking concerns surfaced to reviewers.
	Warnings []string `json:"warnings,omitempty"`
	// Reversible is true when the action can be undone.
	Reversible bool `json:"reversible"`
	// FileChanges previews the files the action would touch.
	FileChanges []FileChange `json:"file_changes,omitempty"`
}
