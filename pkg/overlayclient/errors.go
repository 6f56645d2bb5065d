package overlayclient

import (
	"errors"
	"fmt"
)

// ErrLockLost means another session took the overlay (or this
// session's own heartbeat lapsed and someone grabbed it). The caller
// must stop heartbeating and re-resolve from scratch.
var ErrLockLost = errors.New("overlay session lock lost")

// SessionLockedError is the acquire-time face of the same conflict:
// someone else currently holds the overlay.
type SessionLockedError struct {
	Token   string
	Message string
}

func (e *SessionLockedError) Error() string {
	return fmt.Sprintf("overlay locked: token=%s message=%q", e.Token, e.Message)
}

type NotFoundError struct {
	Token string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("overlay not found: token=%s", e.Token)
}

type UnexpectedStatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s %s -> %d body=%q", e.Method, e.Path, e.Code, e.Body)
}
