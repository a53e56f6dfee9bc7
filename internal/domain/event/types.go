// Package event defines the append-only domain event model: immutable
// facts, their hash-chained persisted form, and the store port every
// durable adapter implements.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type tags a domain event. Tags are plain strings so streams written by
// newer builds stay readable: unrecognized tags decode to a generic event
// via the registry instead of failing.
type Type string

// Action lifecycle events.
const (
	TypeActionProposed         Type = "ActionProposed"
	TypeActionPreviewGenerated Type = "ActionPreviewGenerated"
	TypeActionPolicyDecided    Type = "ActionPolicyDecided"
	TypeActionApproved         Type = "ActionApproved"
	TypeActionRejected         Type = "ActionRejected"
	TypeActionExecuted         Type = "ActionExecuted"
	TypeActionExecutionFailed  Type = "ActionExecutionFailed"
)

// Agent and governance lifecycle events.
const (
	TypeAgentRegistered    Type = "AgentRegistered"
	TypeAgentSuspended     Type = "AgentSuspended"
	TypeDescriptorVerified Type = "DescriptorVerified"
	TypeDescriptorRejected Type = "DescriptorRejected"
)

// knownTypes is the registry of recognized event tags. Lookup, not
// open-ended type resolution: unknown tags are still valid events.
var knownTypes = map[Type]bool{
	TypeActionProposed:         true,
	TypeActionPreviewGenerated: true,
	TypeActionPolicyDecided:    true,
	TypeActionApproved:         true,
	TypeActionRejected:         true,
	TypeActionExecuted:         true,
	TypeActionExecutionFailed:  true,
	TypeAgentRegistered:        true,
	TypeAgentSuspended:         true,
	TypeDescriptorVerified:     true,
	TypeDescriptorRejected:     true,
}

// KnownType reports whether tag is a registered event type.
func KnownType(tag Type) bool {
	return knownTypes[tag]
}

// DomainEvent is an immutable record of something that happened.
// Once appended it is never mutated and never deleted; the store enforces
// this structurally, not just by convention.
type DomainEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"event_id"`
	// Type is the event's discriminating tag.
	Type Type `json:"event_type"`
	// StreamID is the logical aggregate key (e.g. "action:<uuid>").
	StreamID string `json:"stream_id"`
	// OccurredAt is when the event happened (UTC).
	OccurredAt time.Time `json:"occurred_at"`
	// Data is the event payload.
	Data map[string]any `json:"data"`
	// Metadata carries actor, correlation id, and similar context.
	Metadata map[string]any `json:"metadata"`
}

// New creates a DomainEvent with a fresh ID and UTC timestamp.
func New(eventType Type, streamID string, data map[string]any) DomainEvent {
	if data == nil {
		data = map[string]any{}
	}
	return DomainEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		StreamID:   streamID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
		Metadata:   map[string]any{},
	}
}

// WithMetadata returns a copy of the event with the given metadata merged in.
func (e DomainEvent) WithMetadata(meta map[string]any) DomainEvent {
	merged := make(map[string]any, len(e.Metadata)+len(meta))
	for k, v := range e.Metadata {
		merged[k] = v
	}
	for k, v := range meta {
		merged[k] = v
	}
	e.Metadata = merged
	return e
}

// PersistedEvent is the stored form of a DomainEvent: versioned within its
// stream and hash-chained to its predecessor.
type PersistedEvent struct {
	DomainEvent

	// StreamVersion starts at 1 and increments by exactly 1 per append
	// within a stream. Unique per (stream_id, stream_version).
	StreamVersion int64 `json:"stream_version"`
	// Hash is the canonical digest over the event's content and PrevHash.
	Hash string `json:"hash"`
	// PrevHash is the previous event's Hash within the same stream, or ""
	// for version 1.
	PrevHash string `json:"prev_hash,omitempty"`
}
