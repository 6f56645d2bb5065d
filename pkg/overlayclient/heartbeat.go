package overlayclient

import (
	"context"
	"errors"
	"time"
)

// StartHeartbeat renews the session's claim periodically until ctx is
// cancelled or the lock is lost. It returns a channel that emits
// errors and closes on exit.
// Semantics:
// - ErrLockLost: the loop stops; the caller must re-resolve
// - transient errors (network, 5xx): surfaced but the loop continues
// - ctx cancel: stop cleanly, the claim lapses server-side after 30s
func (c *Client) StartHeartbeat(ctx context.Context, token, sessionID string, opt HeartbeatOptions) <-chan error {
	errCh := make(chan error, 1)

	if opt.Interval <= 0 {
		opt.Interval = DefaultHeartbeatInterval
	}

	go func() {
		defer close(errCh)

		t := time.NewTicker(opt.Interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				err := c.HeartbeatOnce(ctx, token, sessionID)
				if err == nil {
					continue
				}
				select {
				case errCh <- err:
				default:
				}
				if errors.Is(err, ErrLockLost) {
					return
				}
				// transient; keep beating
			}
		}
	}()

	return errCh
}
