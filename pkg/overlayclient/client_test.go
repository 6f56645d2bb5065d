package overlayclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolveWithRetry_SucceedsAfterConflicts(t *testing.T) {
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/public/tok-1" {
			http.NotFound(w, r)
			return
		}
		calls++
		w.Header().Set("Content-Type", "application/json")

		// First 2 calls: another session holds the overlay
		if calls <= 2 {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{
				"error": "Session Active on another device",
				"message": "This overlay is currently open elsewhere."
			}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"layoutId": "neon",
			"config": {"accent": "blue"},
			"isExpired": false
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, &http.Client{Timeout: 2 * time.Second})

	view, err := c.ResolveWithRetry(context.Background(), "tok-1", "me", ResolveOptions{
		MaxRetries:   10,
		MaxTotalWait: 2 * time.Second,
		MinRetry:     5 * time.Millisecond,
		MaxRetry:     20 * time.Millisecond,
		JitterFrac:   0, // deterministic
	})
	if err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if view.LayoutID != "neon" || view.Expired {
		t.Fatalf("unexpected view: %+v", view)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestResolveOnce_TerminalOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/public/ghost":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"overlay not found"}`))
		case "/api/public/stale":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"isExpired": true}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	ctx := context.Background()

	_, err := c.ResolveOnce(ctx, "ghost", "s1")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Token != "ghost" {
		t.Fatalf("unknown token err = %v", err)
	}

	view, err := c.ResolveOnce(ctx, "stale", "s1")
	if err != nil {
		t.Fatalf("expired resolve err = %v", err)
	}
	if !view.Expired {
		t.Fatal("expired overlay not flagged")
	}

	_, err = c.ResolveOnce(ctx, "weird", "s1")
	var us *UnexpectedStatusError
	if !errors.As(err, &us) || us.Code != http.StatusTeapot {
		t.Fatalf("unexpected status err = %v", err)
	}
}

func TestStartHeartbeat_StopsOnLockLost(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/public/heartbeat" {
			http.NotFound(w, r)
			return
		}
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls <= 2 {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"success": true}`))
			return
		}
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": "Lock lost or stolen"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := c.StartHeartbeat(ctx, "tok-1", "me", HeartbeatOptions{Interval: 10 * time.Millisecond})

	var got error
	for err := range errCh {
		got = err
	}
	if !errors.Is(got, ErrLockLost) {
		t.Fatalf("final heartbeat error = %v, want ErrLockLost", got)
	}
	if calls != 3 {
		t.Fatalf("expected 3 heartbeats, got %d", calls)
	}
}
