package event

import (
	"context"
	"errors"
)

// ErrConcurrentAppend is returned when two appends race for the same
// (stream_id, stream_version). The losing append must be surfaced, never
// silently retried: after a timeout the outcome is unknown and callers
// must re-check stream state before retrying.
var ErrConcurrentAppend = errors.New("concurrent append conflict")

// ErrImmutableStore is returned when something attempts to modify or
// delete a persisted event. Deletion fails loudly, it never silently
// succeeds.
var ErrImmutableStore = errors.New("event store is append-only")

// Store is the durable append destination for domain events.
//
// Implementations must provide a uniqueness constraint (or equivalent
// serialization point) on (stream_id, stream_version) so concurrent
// appends to one stream never both succeed at the same version, while
// appends to different streams proceed independently.
type Store interface {
	// Append assigns the next stream version, computes the chain hash,
	// and durably records the event. A failed append leaves no partial
	// record.
	Append(ctx context.Context, e DomainEvent) (PersistedEvent, error)

	// GetStream returns a stream's events in ascending version order.
	// A stream that does not exist yields an empty slice, not an error.
	GetStream(ctx context.Context, streamID string) ([]PersistedEvent, error)

	// VerifyStreamIntegrity recomputes the hash chain for a stream and
	// reports whether it is intact. Empty streams verify true.
	VerifyStreamIntegrity(ctx context.Context, streamID string) (bool, error)

	// ListStreams returns all known stream ids in lexical order, for
	// integrity sweeps.
	ListStreams(ctx context.Context) ([]string, error)
}
