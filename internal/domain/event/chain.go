package event

import (
	"fmt"
	"time"

	"github.com/action-gate/actiongate/internal/canonical"
)

// chainContent is the exact field set covered by an event's hash. Field
// order here is irrelevant: canonicalization sorts keys before digesting.
type chainContent struct {
	EventID       string         `json:"event_id"`
	EventType     Type           `json:"event_type"`
	StreamID      string         `json:"stream_id"`
	StreamVersion int64          `json:"stream_version"`
	OccurredAt    string         `json:"occurred_at"`
	Data          map[string]any `json:"data"`
	Metadata      map[string]any `json:"metadata"`
	PrevHash      string         `json:"prev_hash"`
}

// ComputeHash returns the chain digest for an event at the given version
// with the given predecessor hash ("" for version 1). Any alteration of
// stored content, reordering, or silent deletion changes the recomputed
// value and breaks the chain at or after the tampered point.
func ComputeHash(e DomainEvent, streamVersion int64, prevHash string) (string, error) {
	digest, err := canonical.Digest(chainContent{
		EventID:       e.ID,
		EventType:     e.Type,
		StreamID:      e.StreamID,
		StreamVersion: streamVersion,
		OccurredAt:    e.OccurredAt.UTC().Format(time.RFC3339Nano),
		Data:          e.Data,
		Metadata:      e.Metadata,
		PrevHash:      prevHash,
	})
	if err != nil {
		return "", fmt.Errorf("compute event hash: %w", err)
	}
	return digest, nil
}

// VerifyChain walks persisted events in version order and reports whether
// the stream's hash chain is intact. Events must be sorted ascending by
// StreamVersion. An empty sequence verifies true (vacuously valid); callers
// sweeping all streams should distinguish "never existed" via GetStream.
//
// Runs in O(n) time with O(1) memory beyond the input slice.
func VerifyChain(events []PersistedEvent) (bool, error) {
	prevHash := ""
	for i, ev := range events {
		if ev.StreamVersion != int64(i)+1 {
			return false, nil
		}
		if ev.PrevHash != prevHash {
			return false, nil
		}
		expected, err := ComputeHash(ev.DomainEvent, ev.StreamVersion, ev.PrevHash)
		if err != nil {
			return false, err
		}
		if ev.Hash != expected {
			return false, nil
		}
		prevHash = ev.Hash
	}
	return true, nil
}
