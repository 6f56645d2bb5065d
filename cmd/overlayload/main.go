// overlayload drives contention against a single overlay token: many
// viewer sessions fight for the session lock, hold it while
// heartbeating, then abandon it so the next session can take over. The
// embedded ledger asserts the core guarantee that two sessions never
// believe they hold the same overlay at once.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orbiodesigns/themestore/pkg/overlayclient"
)

// HolderLedger records which session currently believes it holds the
// overlay. Enter fails if another session is already inside, which is
// exactly the violation the lock must prevent.
type HolderLedger struct {
	mu         sync.Mutex
	holder     string
	violations int64
	handoffs   int64
}

func (l *HolderLedger) Enter(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" && l.holder != sessionID {
		l.violations++
		return false
	}
	if l.holder == "" {
		l.handoffs++
	}
	l.holder = sessionID
	return true
}

func (l *HolderLedger) Leave(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == sessionID {
		l.holder = ""
	}
}

func (l *HolderLedger) Stats() (violations, handoffs int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.violations, l.handoffs
}

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "themestore base URL")
		token    = flag.String("token", "", "public overlay token to contend for (required)")
		viewers  = flag.Int("viewers", 10, "number of concurrent viewer loops")
		duration = flag.Duration("duration", 2*time.Minute, "test duration")
		beat     = flag.Duration("beat", overlayclient.DefaultHeartbeatInterval, "heartbeat interval")
		hold     = flag.Duration("hold", 25*time.Second, "how long a granted session keeps the overlay")
		dropRate = flag.Float64("droprate", 0.3, "probability a holder abandons without a clean stop (simulates closed tab)")
	)
	flag.Parse()

	if *token == "" {
		fmt.Println("-token is required")
		return
	}

	httpc := &http.Client{Timeout: 10 * time.Second}
	ledger := &HolderLedger{}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var (
		grants    int64
		conflicts int64
		lockLosts int64
		expired   int64
		errCount  int64
	)

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *viewers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := overlayclient.New(*baseURL, httpc)

			for ctx.Err() == nil {
				sessionID := overlayclient.NewSessionID()

				view, err := c.ResolveOnce(ctx, *token, sessionID)
				if err != nil {
					var locked *overlayclient.SessionLockedError
					switch {
					case errors.As(err, &locked):
						atomic.AddInt64(&conflicts, 1)
						sleepCtx(ctx, time.Duration(rand.Int63n(int64(2*time.Second))))
					case ctx.Err() != nil:
						return
					default:
						atomic.AddInt64(&errCount, 1)
						sleepCtx(ctx, 500*time.Millisecond)
					}
					continue
				}
				if view.Expired {
					atomic.AddInt64(&expired, 1)
					return
				}

				atomic.AddInt64(&grants, 1)
				if !ledger.Enter(sessionID) {
					// Another live holder existed; keep going so the
					// run surfaces every violation, not just the first.
					continue
				}

				holdCtx, stopHold := context.WithTimeout(ctx, *hold)
				errCh := c.StartHeartbeat(holdCtx, *token, sessionID, overlayclient.HeartbeatOptions{
					Interval: *beat,
				})

				abandoned := rand.Float64() < *dropRate
				if abandoned {
					// Walk away mid-hold: stop heartbeating and let the
					// 30s timeout free the slot for someone else.
					sleepCtx(holdCtx, *hold/2)
					stopHold()
				}

				for err := range errCh {
					if errors.Is(err, overlayclient.ErrLockLost) {
						atomic.AddInt64(&lockLosts, 1)
						break
					}
					atomic.AddInt64(&errCount, 1)
				}
				stopHold()
				ledger.Leave(sessionID)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	violations, handoffs := ledger.Stats()

	fmt.Println("=== Overlay Session Lock Contention Test ===")
	fmt.Printf("duration: %s, viewers: %d, token: %s\n", elapsed.Round(time.Second), *viewers, *token)
	fmt.Printf("grants:          %d\n", grants)
	fmt.Printf("conflicts:       %d\n", conflicts)
	fmt.Printf("lock_losts:      %d\n", lockLosts)
	fmt.Printf("expired:         %d\n", expired)
	fmt.Printf("handoffs:        %d\n", handoffs)
	fmt.Printf("errors:          %d\n", errCount)
	fmt.Printf("OVERLAP VIOLATIONS: %d (must be 0)\n", violations)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
