// Package memory provides in-memory implementations of outbound ports,
// used in tests and by embedders that do not need durability.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/action-gate/actiongate/internal/domain/event"
)

// EventStore is an in-memory event.Store with the same versioning and
// hash-chain semantics as the sqlite adapter. A single mutex serializes
// appends; the per-stream version check preserves the uniqueness
// guarantee on (stream_id, stream_version).
type EventStore struct {
	mu      sync.RWMutex
	streams map[string][]event.PersistedEvent
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{streams: make(map[string][]event.PersistedEvent)}
}

// Append assigns the next stream version, chains the hash, and records the
// event.
func (s *EventStore) Append(_ context.Context, e event.DomainEvent) (event.PersistedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.Data = cloneMap(e.Data)
	e.Metadata = cloneMap(e.Metadata)

	stream := s.streams[e.StreamID]
	version := int64(len(stream)) + 1
	prevHash := ""
	if version > 1 {
		prevHash = stream[len(stream)-1].Hash
	}

	hash, err := event.ComputeHash(e, version, prevHash)
	if err != nil {
		return event.PersistedEvent{}, err
	}

	persisted := event.PersistedEvent{
		DomainEvent:   e,
		StreamVersion: version,
		Hash:          hash,
		PrevHash:      prevHash,
	}
	s.streams[e.StreamID] = append(stream, persisted)
	return persisted, nil
}

// GetStream returns a deep copy of the stream in ascending version
// order. Callers cannot reach the stored maps, so the append-only
// contract holds without the triggers the durable adapter relies on.
func (s *EventStore) GetStream(_ context.Context, streamID string) ([]event.PersistedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[streamID]
	out := make([]event.PersistedEvent, len(stream))
	for i, e := range stream {
		e.Data = cloneMap(e.Data)
		e.Metadata = cloneMap(e.Metadata)
		out[i] = e
	}
	return out, nil
}

// VerifyStreamIntegrity recomputes the hash chain for a stream.
func (s *EventStore) VerifyStreamIntegrity(ctx context.Context, streamID string) (bool, error) {
	events, err := s.GetStream(ctx, streamID)
	if err != nil {
		return false, err
	}
	return event.VerifyChain(events)
}

// ListStreams returns all stream ids in lexical order.
func (s *EventStore) ListStreams(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Tamper overwrites a stored event in place, bypassing the append-only
// contract. Test hook for integrity verification; the durable adapter has
// no equivalent because its triggers reject updates outright.
func (s *EventStore) Tamper(streamID string, version int64, mutate func(*event.PersistedEvent)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[streamID]
	if version < 1 || version > int64(len(stream)) {
		return false
	}
	mutate(&stream[version-1])
	return true
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = cloneValue(nested)
		}
		return out
	default:
		return v
	}
}

// Compile-time interface verification.
var _ event.Store = (*EventStore)(nil)
