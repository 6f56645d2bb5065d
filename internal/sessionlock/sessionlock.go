// Package sessionlock decides which viewer session may hold an
// overlay's exclusive viewing slot. One lock exists per subscription
// row; a session holds it while its heartbeats are fresher than
// Timeout. There is no explicit release: an abandoned session simply
// stops renewing and the slot frees itself after Timeout.
package sessionlock

import (
	"context"
	"fmt"
	"time"
)

const (
	// Timeout is how long a holder may go without a successful renew
	// before the slot is considered abandoned.
	Timeout = 30 * time.Second

	// HeartbeatInterval is the cadence viewers renew at. It is 1/3 of
	// Timeout so a single missed beat never causes a false eviction.
	HeartbeatInterval = 10 * time.Second
)

// State is the lock portion of a subscription row. The zero value
// means the overlay has never been viewed.
type State struct {
	SessionID string    // current holder, empty when unlocked
	LastBeat  time.Time // last successful acquire or renew for SessionID
}

// Free reports whether the slot is claimable by any session at now.
// A holder whose last beat is exactly Timeout old still holds.
func (s State) Free(now time.Time) bool {
	return s.SessionID == "" || now.Sub(s.LastBeat) > Timeout
}

// Reason explains a denied decision.
type Reason string

const ReasonSessionLocked Reason = "SESSION_LOCKED"

// Decision is the outcome of a single acquire-or-renew attempt.
type Decision struct {
	Granted bool
	Reason  Reason // set when not granted
}

// Attempt is the pure acquire-or-renew rule: grant when the slot is
// free or already owned by the requester, deny otherwise. First come
// first served; there is no queue. Granted decisions require the
// caller to persist sessionID/now via a conditional write that
// re-checks this same condition (see Store.Claim), otherwise two
// simultaneous first-acquirers could both observe a free slot.
func Attempt(st State, sessionID string, now time.Time) Decision {
	if st.Free(now) || st.SessionID == sessionID {
		return Decision{Granted: true}
	}
	return Decision{Reason: ReasonSessionLocked}
}

// FreeBefore returns the heartbeat cutoff for now: a stored beat
// strictly older than this instant no longer protects the holder.
// Stores use it to build the conditional claim predicate.
func FreeBefore(now time.Time) time.Time {
	return now.Add(-Timeout)
}

// Store persists lock state. Claim must atomically re-evaluate
// Attempt's condition against the stored row and, if it holds, write
// sessionID as holder with now as the beat. It reports false when the
// row is held by a different live session or does not exist; exactly
// one of two concurrent claims on a free slot may report true.
// Implementations must derive the result from the write itself (e.g.
// affected row count), not from a prior read.
type Store interface {
	Claim(ctx context.Context, token, sessionID string, now time.Time) (bool, error)
}

// StoreError marks a transient persistence failure. It is distinct
// from a denied decision: callers may retry, but must not treat it as
// a lock conflict.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("session lock store: %v", e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// Coordinator runs attempts against a Store. It holds no state of its
// own; all coordination lives in the store row, so any number of
// Coordinators (one per process) stay consistent.
type Coordinator struct {
	store Store
}

func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store}
}

// Attempt performs one acquire-or-renew against the stored row.
// Renewal is the same operation as acquisition. It never retries.
func (c *Coordinator) Attempt(ctx context.Context, token, sessionID string, now time.Time) (Decision, error) {
	if token == "" || sessionID == "" {
		return Decision{}, fmt.Errorf("token and sessionID required")
	}
	ok, err := c.store.Claim(ctx, token, sessionID, now)
	if err != nil {
		return Decision{}, &StoreError{Err: err}
	}
	if !ok {
		return Decision{Reason: ReasonSessionLocked}, nil
	}
	return Decision{Granted: true}, nil
}
