package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/action-gate/actiongate/internal/domain/event"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestStore(t *testing.T) *EventStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppend_AssignsSequentialVersions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	streamID := "action:versions"

	for i := 1; i <= 5; i++ {
		persisted, err := store.Append(ctx, event.New(event.TypeActionProposed, streamID, map[string]any{"i": i}))
		if err != nil {
			t.Fatalf("Append() #%d error: %v", i, err)
		}
		if persisted.StreamVersion != int64(i) {
			t.Errorf("Append() #%d version = %d, want %d", i, persisted.StreamVersion, i)
		}
	}

	events, err := store.GetStream(ctx, streamID)
	if err != nil {
		t.Fatalf("GetStream() error: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("GetStream() returned %d events, want 5", len(events))
	}
	for i, ev := range events {
		if ev.StreamVersion != int64(i)+1 {
			t.Errorf("event %d version = %d, want %d", i, ev.StreamVersion, i+1)
		}
	}
}

func TestAppend_ChainsHashes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	streamID := "action:chain"

	for i := 0; i < 3; i++ {
		if _, err := store.Append(ctx, event.New(event.TypeActionProposed, streamID, map[string]any{"i": i})); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	events, err := store.GetStream(ctx, streamID)
	if err != nil {
		t.Fatalf("GetStream() error: %v", err)
	}
	if events[0].PrevHash != "" {
		t.Errorf("first event prev_hash = %q, want empty", events[0].PrevHash)
	}
	for i := 1; i < len(events); i++ {
		if events[i].PrevHash != events[i-1].Hash {
			t.Errorf("event %d prev_hash does not match predecessor hash", i)
		}
	}
}

func TestGetStream_UnknownStreamIsEmpty(t *testing.T) {
	store := openTestStore(t)

	events, err := store.GetStream(context.Background(), "action:never-existed")
	if err != nil {
		t.Fatalf("GetStream() error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("GetStream() on unknown stream returned %d events, want 0", len(events))
	}
}

func TestVerifyStreamIntegrity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	streamID := "action:verify"

	for i := 0; i < 4; i++ {
		if _, err := store.Append(ctx, event.New(event.TypeActionProposed, streamID, map[string]any{"i": i})); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	ok, err := store.VerifyStreamIntegrity(ctx, streamID)
	if err != nil {
		t.Fatalf("VerifyStreamIntegrity() error: %v", err)
	}
	if !ok {
		t.Error("VerifyStreamIntegrity() = false for an intact stream")
	}
}

func TestVerifyStreamIntegrity_EmptyStreamIsValid(t *testing.T) {
	store := openTestStore(t)

	ok, err := store.VerifyStreamIntegrity(context.Background(), "action:empty")
	if err != nil {
		t.Fatalf("VerifyStreamIntegrity() error: %v", err)
	}
	if !ok {
		t.Error("VerifyStreamIntegrity() = false for an empty stream, want vacuously true")
	}
}

func TestEvents_UpdateAndDeleteRejectedByTriggers(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Append(ctx, event.New(event.TypeActionProposed, "action:immutable", nil)); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	_, err := store.db.ExecContext(ctx, `UPDATE events SET data = '{"forged":true}'`)
	if err == nil {
		t.Fatal("UPDATE on events table succeeded, want trigger abort")
	}
	if mapped := mapExecError(err, "action:immutable", 1); !errors.Is(mapped, event.ErrImmutableStore) {
		t.Errorf("mapExecError() = %v, want ErrImmutableStore", mapped)
	}

	_, err = store.db.ExecContext(ctx, `DELETE FROM events`)
	if err == nil {
		t.Fatal("DELETE on events table succeeded, want trigger abort")
	}

	// The chain is untouched after the failed writes.
	ok, err := store.VerifyStreamIntegrity(ctx, "action:immutable")
	if err != nil {
		t.Fatalf("VerifyStreamIntegrity() error: %v", err)
	}
	if !ok {
		t.Error("VerifyStreamIntegrity() = false after rejected tamper attempts")
	}
}

func TestAppend_ConcurrentSameStream(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	streamID := "action:concurrent"
	const appenders = 8

	var wg sync.WaitGroup
	errs := make([]error, appenders)
	for i := 0; i < appenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Append(ctx, event.New(event.TypeActionProposed, streamID, map[string]any{"worker": i}))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, event.ErrConcurrentAppend):
			// Acceptable: the loser of a version race is reported, not
			// silently retried.
		default:
			t.Fatalf("Append() unexpected error: %v", err)
		}
	}

	events, err := store.GetStream(ctx, streamID)
	if err != nil {
		t.Fatalf("GetStream() error: %v", err)
	}
	if len(events) != succeeded {
		t.Fatalf("stream has %d events, %d appends succeeded", len(events), succeeded)
	}
	seen := make(map[int64]bool)
	for i, ev := range events {
		if ev.StreamVersion != int64(i)+1 {
			t.Errorf("version gap: event %d has version %d", i, ev.StreamVersion)
		}
		if seen[ev.StreamVersion] {
			t.Errorf("duplicate version %d", ev.StreamVersion)
		}
		seen[ev.StreamVersion] = true
	}

	ok, err := store.VerifyStreamIntegrity(ctx, streamID)
	if err != nil {
		t.Fatalf("VerifyStreamIntegrity() error: %v", err)
	}
	if !ok {
		t.Error("VerifyStreamIntegrity() = false after concurrent appends")
	}
}

func TestListStreams(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, streamID := range []string{"action:b", "action:a", "agent:z"} {
		for i := 0; i < 2; i++ {
			if _, err := store.Append(ctx, event.New(event.TypeActionProposed, streamID, nil)); err != nil {
				t.Fatalf("Append() error: %v", err)
			}
		}
	}

	ids, err := store.ListStreams(ctx)
	if err != nil {
		t.Fatalf("ListStreams() error: %v", err)
	}
	want := []string{"action:a", "action:b", "agent:z"}
	if len(ids) != len(want) {
		t.Fatalf("ListStreams() returned %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ListStreams()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
