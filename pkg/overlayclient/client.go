// Package overlayclient is the viewer-side SDK for the public overlay
// endpoints: resolve a tokenized overlay URL, then keep the granted
// session alive with heartbeats. It is what a native viewer (or a load
// tool) uses instead of the browser page.
package overlayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Client struct {
	baseURL string
	http    *http.Client
	rng     *rand.Rand
}

func New(baseURL string, hc *http.Client) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		http:    hc,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSessionID generates a viewer session id, unique per page load.
// The server never validates uniqueness; collisions are the client's
// problem, so use this rather than inventing short ids.
func NewSessionID() string { return uuid.NewString() }

// ---- Wire format ----

type resolveResp struct {
	LayoutID  string          `json:"layoutId"`
	Config    json.RawMessage `json:"config"`
	IsExpired bool            `json:"isExpired"`
	Error     string          `json:"error"`
	Message   string          `json:"message"`
}

type heartbeatReq struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
}

type heartbeatResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ---- Low-level operations ----

// ResolveOnce performs one page-load attempt. A granted attempt seizes
// the session lock server-side, so callers that get a View back are
// expected to start heartbeating or let the claim lapse after 30s.
func (c *Client) ResolveOnce(ctx context.Context, token, sessionID string) (View, error) {
	if token == "" || sessionID == "" {
		return View{}, fmt.Errorf("token and sessionID required")
	}

	path := fmt.Sprintf("%s/api/public/%s?sessionId=%s", c.baseURL, url.PathEscape(token), url.QueryEscape(sessionID))

	var out resolveResp
	code, raw, err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return View{}, err
	}

	switch code {
	case http.StatusOK:
		return View{LayoutID: out.LayoutID, Config: out.Config, Expired: out.IsExpired}, nil
	case http.StatusConflict:
		return View{}, &SessionLockedError{Token: token, Message: out.Message}
	case http.StatusNotFound:
		return View{}, &NotFoundError{Token: token}
	default:
		return View{}, &UnexpectedStatusError{Method: http.MethodGet, Path: path, Code: code, Body: raw}
	}
}

// HeartbeatOnce renews the session's claim. ErrLockLost means the
// claim is gone for good and the loop must stop.
func (c *Client) HeartbeatOnce(ctx context.Context, token, sessionID string) error {
	if token == "" || sessionID == "" {
		return fmt.Errorf("token and sessionID required")
	}

	path := c.baseURL + "/api/public/heartbeat"
	var out heartbeatResp
	code, raw, err := c.doJSON(ctx, http.MethodPost, path, heartbeatReq{Token: token, SessionID: sessionID}, &out)
	if err != nil {
		return err
	}

	switch {
	case code == http.StatusOK && out.Success:
		return nil
	case code == http.StatusConflict:
		return ErrLockLost
	default:
		return &UnexpectedStatusError{Method: http.MethodPost, Path: path, Code: code, Body: raw}
	}
}

// ---- Retry wrapper ----

// ResolveWithRetry keeps attempting while the overlay is locked by
// another session, backing off between attempts. Not-found and expired
// are terminal: retrying cannot change them.
func (c *Client) ResolveWithRetry(ctx context.Context, token, sessionID string, opt ResolveOptions) (View, error) {
	if opt.MaxRetries <= 0 {
		opt.MaxRetries = 30
	}
	if opt.MinRetry <= 0 {
		opt.MinRetry = 2 * time.Second
	}
	if opt.MaxRetry <= 0 {
		opt.MaxRetry = 15 * time.Second
	}
	if opt.JitterFrac <= 0 {
		opt.JitterFrac = 0.2
	}

	start := time.Now()
	var lastLocked *SessionLockedError

	for attempt := 0; attempt <= opt.MaxRetries; attempt++ {
		if opt.MaxTotalWait > 0 && time.Since(start) > opt.MaxTotalWait {
			if lastLocked != nil {
				return View{}, lastLocked
			}
			return View{}, context.DeadlineExceeded
		}

		view, err := c.ResolveOnce(ctx, token, sessionID)
		if err == nil {
			return view, nil
		}
		locked, ok := err.(*SessionLockedError)
		if !ok {
			return View{}, err
		}
		lastLocked = locked

		sleep := time.Duration(float64(opt.MinRetry) * math.Pow(1.5, float64(attempt)))
		if sleep > opt.MaxRetry {
			sleep = opt.MaxRetry
		}
		sleep = addJitter(c.rng, sleep, opt.JitterFrac)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return View{}, ctx.Err()
		case <-timer.C:
		}
	}

	return View{}, lastLocked
}

func addJitter(r *rand.Rand, d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	// jitter range: [d*(1-frac), d*(1+frac)]
	j := (r.Float64()*2 - 1) * frac
	out := time.Duration(float64(d) * (1 + j))
	if out < 0 {
		return 0
	}
	return out
}

// doJSON sends JSON and optionally decodes JSON response.
// Returns status code and raw body (trimmed) for debugging.
func (c *Client) doJSON(ctx context.Context, method, url string, req any, resp any) (int, string, error) {
	var rd io.Reader
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return 0, "", err
		}
		rd = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, "", err
	}
	if req != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	rsp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, "", err
	}
	defer rsp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(rsp.Body, 1<<20))
	raw := strings.TrimSpace(string(body))

	if resp != nil && len(body) > 0 {
		_ = json.Unmarshal(body, resp) // tolerate non-JSON error bodies
	}
	return rsp.StatusCode, raw, nil
}
