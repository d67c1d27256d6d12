package store

import (
	"context"
	"fmt"

	"github.com/aelexs/phone-verify-service/internal/domain"
)

// Mutator inspects and mutates a session record in place. Returning an error
// aborts the update without writing; the store still returns the
// caller's error unwrapped so business-rule rejections (e.g.
// ErrSessionVerified) are distinguishable from storage faults.
type Mutator func(*Record) error

// Store is the compare-and-swap session store contract (spec §4.1).
// Update implementations MUST perform the read-mutate-write cycle under a
// version-equality condition so concurrent updates never silently clobber
// each other; a losing writer observes domain.ErrConflict and is expected
// to retry.
type Store interface {
	// Create persists a brand-new session record. rec.SessionID must already
	// be set by the caller. Returns domain.ErrAlreadyExists on collision
	// (astronomically unlikely for a 128-bit random ID, handled defensively).
	Create(ctx context.Context, rec Record) error

	// Get retrieves a session by ID. Returns domain.ErrNotFound if absent or
	// already past ExpiresAt.
	Get(ctx context.Context, sessionID string) (*Record, error)

	// Update performs a compare-and-swap read-mutate-write. mutate observes
	// the current record and applies changes in place; Update increments
	// Version and writes conditionally on the version it read. Returns
	// domain.ErrNotFound if the session does not exist, domain.ErrConflict
	// if another writer won the race, or whatever error mutate returned.
	Update(ctx context.Context, sessionID string, mutate Mutator) (*Record, error)
}

// applyMutator runs mutate against a copy of cur and returns the mutated
// copy, or the error mutate returned (never wrapped, so callers can match
// domain sentinels directly with errors.Is).
func applyMutator(cur *Record, mutate Mutator) (*Record, error) {
	next := *cur
	next.SendAttempts = append([]SendAttempt(nil), cur.SendAttempts...)
	next.CheckAttempts = append([]CheckAttempt(nil), cur.CheckAttempts...)
	if err := mutate(&next); err != nil {
		return nil, err
	}
	return &next, nil
}

func notFoundf(op, sessionID string) error {
	return fmt.Errorf("session store: %s: session %q: %w", op, sessionID, domain.ErrNotFound)
}
