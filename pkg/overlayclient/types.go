package overlayclient

import (
	"encoding/json"
	"time"
)

// View is what a granted resolve returns: everything the overlay page
// needs to render.
type View struct {
	LayoutID string
	Config   json.RawMessage
	Expired  bool
}

// ResolveOptions controls retry behavior while the overlay is locked
// by another session.
type ResolveOptions struct {
	MaxRetries   int           // bounded retry; 0 => default
	MaxTotalWait time.Duration // optional global cap; 0 => no cap
	MinRetry     time.Duration // default 2s
	MaxRetry     time.Duration // default 15s
	JitterFrac   float64       // default 0.2 (20%)
}

// HeartbeatOptions controls the renewal loop.
type HeartbeatOptions struct {
	Interval time.Duration // default DefaultHeartbeatInterval
}

// DefaultHeartbeatInterval matches the server's 30s lock timeout with
// a 3x safety margin, so one missed beat does not forfeit the session.
const DefaultHeartbeatInterval = 10 * time.Second
