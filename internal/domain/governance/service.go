// Package governance composes the impact analyzer, prompt scanner, policy
// evaluator, and event store into the decision flow for proposed agent
// actions. The service holds no state between calls; every decision is
// reproducible from its inputs and fully recorded on the action's event
// stream.
package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/action-gate/actiongate/internal/domain/action"
	"github.com/action-gate/actiongate/internal/domain/descriptor"
	"github.com/action-gate/actiongate/internal/domain/event"
	"github.com/action-gate/actiongate/internal/domain/policy"
	"github.com/action-gate/actiongate/internal/domain/scan"
)

// AutoApprovalTag records the provenance of automatic approvals.
const AutoApprovalTag = "builtin:auto_approve_if_low_risk"

var (
	// ErrActionNotFound is returned for lifecycle calls on unknown actions.
	ErrActionNotFound = errors.New("action not found")
	// ErrInvalidTransition is returned when a lifecycle call does not apply
	// to the action's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Service orchestrates governance decisions.
type Service struct {
	analyzer action.Analyzer
	scanner  *scan.Scanner
	store    event.Store
	metrics  *Metrics
	logger   *slog.Logger
}

// NewService wires the governance decision flow.
func NewService(analyzer action.Analyzer, scanner *scan.Scanner, store event.Store, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		analyzer: analyzer,
		scanner:  scanner,
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}
}

// Outcome is the result of one governance decision.
type Outcome struct {
	ActionID      string                `json:"action_id"`
	StreamID      string                `json:"stream_id"`
	Status        action.ApprovalStatus `json:"status"`
	EffectiveRisk action.RiskLevel      `json:"effective_risk"`
	Preview       action.Preview        `json:"preview"`
	Scan          scan.Result           `json:"scan"`
	Policy        policy.Result         `json:"policy"`
	AutoApproved  bool                  `json:"auto_approved"`
}

// StreamID returns the event stream id for an action.
func StreamID(actionID string) string {
	return "action:" + actionID
}

// Decide runs the full governance flow for one proposed action: impact
// preview, injection scan, risk escalation (max of baseline and scanner,
// never lower), policy evaluation, and the auto-approval gate. Every step
// is appended to the action's event stream before the outcome is
// returned; an append failure fails the decision rather than leaving an
// unaudited outcome.
func (s *Service) Decide(ctx context.Context, req action.Request, cfg *policy.Config, actor string) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("invalid action request: %w", err)
	}
	if strings.TrimSpace(req.ID) == "" {
		req.ID = uuid.NewString()
	}
	req.Payload = action.SanitizePayload(req.Payload)

	preview, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		return Outcome{}, fmt.Errorf("analyze action %s: %w", req.ID, err)
	}

	scanResult := s.scanner.ScanRequest(req)
	scannerRisk := scanResult.MaxRiskLevel()
	escalated := len(scanResult.Findings) > 0 && scannerRisk.Severity() > preview.Risk.Severity()
	effective := action.MaxRisk(preview.Risk, scannerRisk)

	policyResult := policy.NewEvaluator(cfg).Evaluate(policy.InputFromRequest(req, effective))

	autoApproved := req.Options.AutoApproveLowRisk &&
		effective == action.RiskLow &&
		policyResult.Decision == policy.DecisionAllow &&
		!escalated

	status := action.StatusPending
	switch {
	case policyResult.Decision == policy.DecisionDeny:
		status = action.StatusRejected
	case autoApproved:
		status = action.StatusApproved
	}

	if s.metrics != nil {
		s.metrics.DecisionsTotal.WithLabelValues(string(policyResult.Decision)).Inc()
		if escalated {
			s.metrics.ScannerEscalations.Inc()
		}
		if autoApproved {
			s.metrics.AutoApprovalsTotal.Inc()
		}
	}

	streamID := StreamID(req.ID)
	meta := map[string]any{"actor": actor}

	proposed := event.New(event.TypeActionProposed, streamID, map[string]any{
		"action_id":   req.ID,
		"agent_id":    req.AgentID,
		"action_type": string(req.Type),
		"description": req.Description,
		"target":      req.Target,
		"context":     req.Context,
	}).WithMetadata(meta)

	previewed := event.New(event.TypeActionPreviewGenerated, streamID, map[string]any{
		"risk_level":   string(preview.Risk),
		"risk_factors": preview.RiskFactors,
		"warnings":     preview.Warnings,
		"reversible":   preview.Reversible,
	}).WithMetadata(meta)

	decidedData := map[string]any{
		"decision":             string(policyResult.Decision),
		"policy_version":       cfg.Version,
		"effective_risk":       string(effective),
		"scanner_max_severity": string(scanResult.MaxSeverity()),
		"scanner_reason_ids":   scanResult.ReasonIDs(),
		"auto_approved":        autoApproved,
	}
	if policyResult.Matched != nil {
		decidedData["matched_rule_id"] = policyResult.Matched.ID
	}
	decided := event.New(event.TypeActionPolicyDecided, streamID, decidedData).WithMetadata(meta)

	toAppend := []event.DomainEvent{proposed, previewed, decided}
	if autoApproved {
		toAppend = append(toAppend, event.New(event.TypeActionApproved, streamID, map[string]any{
			"approved_by": AutoApprovalTag,
			"reason":      "effective risk low and policy allows",
		}).WithMetadata(meta))
	}

	for _, e := range toAppend {
		if _, err := s.store.Append(ctx, e); err != nil {
			if s.metrics != nil {
				s.metrics.AppendFailuresTotal.Inc()
			}
			return Outcome{}, fmt.Errorf("record %s for action %s: %w", e.Type, req.ID, err)
		}
	}

	s.logger.InfoContext(ctx, "governance decision",
		"action_id", req.ID,
		"action_type", req.Type,
		"decision", policyResult.Decision,
		"effective_risk", effective,
		"scanner_findings", len(scanResult.Findings),
		"auto_approved", autoApproved,
	)

	return Outcome{
		ActionID:      req.ID,
		StreamID:      streamID,
		Status:        status,
		EffectiveRisk: effective,
		Preview:       preview,
		Scan:          scanResult,
		Policy:        policyResult,
		AutoApproved:  autoApproved,
	}, nil
}

// Approve records a human approval for a pending action.
func (s *Service) Approve(ctx context.Context, actionID, actor, reason string) error {
	return s.transition(ctx, actionID, action.StatusPending, event.TypeActionApproved, map[string]any{
		"approved_by": actor,
		"reason":      reason,
	}, actor)
}

// Reject records a human rejection for a pending action.
func (s *Service) Reject(ctx context.Context, actionID, actor, reason string) error {
	return s.transition(ctx, actionID, action.StatusPending, event.TypeActionRejected, map[string]any{
		"rejected_by": actor,
		"reason":      reason,
	}, actor)
}

// RecordExecution records the result of executing an approved action.
func (s *Service) RecordExecution(ctx context.Context, actionID, actor string, ok bool, detail string) error {
	eventType := event.TypeActionExecuted
	if !ok {
		eventType = event.TypeActionExecutionFailed
	}
	return s.transition(ctx, actionID, action.StatusApproved, eventType, map[string]any{
		"executed_by": actor,
		"detail":      detail,
		"succeeded":   ok,
	}, actor)
}

// Status replays an action's stream and returns its current status.
func (s *Service) Status(ctx context.Context, actionID string) (action.ApprovalStatus, error) {
	events, err := s.store.GetStream(ctx, StreamID(actionID))
	if err != nil {
		return "", fmt.Errorf("load action %s: %w", actionID, err)
	}
	if len(events) == 0 {
		return "", fmt.Errorf("action %s: %w", actionID, ErrActionNotFound)
	}
	return statusOf(events), nil
}

// transition appends a lifecycle event after checking the replayed status
// matches the required one.
func (s *Service) transition(ctx context.Context, actionID string, required action.ApprovalStatus, eventType event.Type, data map[string]any, actor string) error {
	current, err := s.Status(ctx, actionID)
	if err != nil {
		return err
	}
	if current != required {
		return fmt.Errorf("action %s is %s, not %s: %w", actionID, current, required, ErrInvalidTransition)
	}

	e := event.New(eventType, StreamID(actionID), data).WithMetadata(map[string]any{"actor": actor})
	if _, err := s.store.Append(ctx, e); err != nil {
		if s.metrics != nil {
			s.metrics.AppendFailuresTotal.Inc()
		}
		return fmt.Errorf("record %s for action %s: %w", eventType, actionID, err)
	}
	s.logger.InfoContext(ctx, "action status changed",
		"action_id", actionID, "event_type", eventType, "actor", actor)
	return nil
}

// statusOf folds lifecycle events into the action's current status.
func statusOf(events []event.PersistedEvent) action.ApprovalStatus {
	status := action.StatusPending
	for _, e := range events {
		switch e.Type {
		case event.TypeActionApproved:
			status = action.StatusApproved
		case event.TypeActionRejected:
			status = action.StatusRejected
		case event.TypeActionExecuted:
			status = action.StatusExecuted
		case event.TypeActionExecutionFailed:
			status = action.StatusFailed
		case event.TypeActionPolicyDecided:
			if decision, _ := e.Data["decision"].(string); decision == string(policy.DecisionDeny) {
				status = action.StatusRejected
			}
		}
	}
	return status
}

// CheckDescriptor evaluates a tool descriptor against the integrity
// policy and records the verdict on the descriptor's event stream.
func (s *Service) CheckDescriptor(ctx context.Context, pol *descriptor.IntegrityPolicy, desc map[string]any, expectedHash, actor string) (descriptor.Result, error) {
	checker := descriptor.NewChecker()
	result, err := checker.Evaluate(pol, desc, expectedHash)
	if err != nil {
		return descriptor.Result{}, err
	}

	eventType := event.TypeDescriptorVerified
	outcome := "allowed"
	if !result.Allowed {
		eventType = event.TypeDescriptorRejected
		outcome = "rejected"
	}
	if s.metrics != nil {
		s.metrics.DescriptorChecksTotal.WithLabelValues(outcome).Inc()
	}

	name := result.DescriptorName
	if name == "" {
		name = "unnamed"
	}
	e := event.New(eventType, "descriptor:"+name, map[string]any{
		"descriptor_hash": result.DescriptorHash,
		"matched_pin":     result.MatchedPin,
		"reason":          result.Reason,
	}).WithMetadata(map[string]any{"actor": actor})

	if _, err := s.store.Append(ctx, e); err != nil {
		if s.metrics != nil {
			s.metrics.AppendFailuresTotal.Inc()
		}
		return descriptor.Result{}, fmt.Errorf("record descriptor check: %w", err)
	}
	return result, nil
}
