package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/orbiodesigns/themestore/internal/obs"
	"github.com/orbiodesigns/themestore/internal/sessionlock"
)

// PublicViewService serves the tokenized overlay URL consumed by
// streaming software. Both operations funnel through the session lock
// coordinator; there is no read-only fast path that could report
// success against stale lock state.
type PublicViewService struct {
	db      *sql.DB
	logger  *obs.Logger
	metrics *obs.Metrics
	coord   *sessionlock.Coordinator
}

func NewPublicViewService(db *sql.DB, logger *obs.Logger, metrics *obs.Metrics) *PublicViewService {
	return &PublicViewService{
		db:      db,
		logger:  logger,
		metrics: metrics,
		coord:   sessionlock.NewCoordinator(&subscriptionLockStore{db: db}),
	}
}

// subscriptionLockStore realizes sessionlock.Store on the
// subscriptions row. Claim is a single conditional UPDATE so two
// simultaneous first-acquirers race on the write, not on a stale read:
// whichever statement commits first matches the row, the other matches
// nothing and reads that as denial.
type subscriptionLockStore struct {
	db *sql.DB
}

func (st *subscriptionLockStore) Claim(ctx context.Context, token, sessionID string, now time.Time) (bool, error) {
	res, err := st.db.ExecContext(ctx, `
UPDATE subscriptions
SET active_session_id = ?, last_heartbeat_ns = ?
WHERE public_token = ?
  AND (active_session_id IS NULL
       OR active_session_id = ?
       OR last_heartbeat_ns IS NULL
       OR last_heartbeat_ns < ?);
`, sessionID, now.UnixNano(), token, sessionID, sessionlock.FreeBefore(now).UnixNano())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PublicViewService) observeLatency(op string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.OpLatencyMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
}

func (s *PublicViewService) incResolve(result string) {
	if s.metrics != nil {
		s.metrics.ResolveTotal.WithLabelValues(result).Inc()
	}
}

func (s *PublicViewService) incHeartbeat(result string) {
	if s.metrics != nil {
		s.metrics.HeartbeatTotal.WithLabelValues(result).Inc()
	}
}

func (s *PublicViewService) incBusy(op string, err error) {
	if s.metrics != nil && isSQLiteBusy(err) {
		s.metrics.DBBusyTotal.WithLabelValues(op).Inc()
	}
}

// Resolve is what a viewer calls once per page load. Expiry is checked
// before the lock attempt: an expired overlay must report expired even
// while another session holds the lock, and must not disturb the lock
// state.
func (s *PublicViewService) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	if req.Token == "" || req.SessionID == "" {
		return ResolveResult{}, fmt.Errorf("token and session id required")
	}

	start := time.Now()
	var (
		logOutcome string
		logErrMsg  string
	)
	defer func() {
		s.observeLatency("resolve", start)
		if s.logger == nil {
			return
		}
		fields := map[string]interface{}{
			"op":         "resolve",
			"session":    req.SessionID,
			"outcome":    logOutcome,
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if logErrMsg != "" {
			fields["error"] = logErrMsg
			s.logger.Error(fields)
		} else {
			s.logger.Info(fields)
		}
	}()

	now := nowOr(req.Now)

	var (
		layoutID string
		expiryNs int64
		cfg      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT layout_id, expiry_ns, saved_theme_config
FROM subscriptions WHERE public_token = ?;
`, req.Token).Scan(&layoutID, &expiryNs, &cfg)
	if errors.Is(err, sql.ErrNoRows) {
		logOutcome = "not_found"
		s.incResolve("not_found")
		return ResolveResult{}, nil
	}
	if err != nil {
		s.incBusy("resolve", err)
		logOutcome, logErrMsg = "error", err.Error()
		return ResolveResult{}, err
	}

	if expiryNs < now.UnixNano() {
		logOutcome = "expired"
		s.incResolve("expired")
		return ResolveResult{Found: true, Expired: true}, nil
	}

	dec, err := s.coord.Attempt(ctx, req.Token, req.SessionID, now)
	if err != nil {
		s.incBusy("resolve", err)
		logOutcome, logErrMsg = "error", err.Error()
		return ResolveResult{}, err
	}
	if !dec.Granted {
		logOutcome = "locked"
		s.incResolve("locked")
		return ResolveResult{Found: true}, nil
	}

	logOutcome = "granted"
	s.incResolve("granted")
	return ResolveResult{
		Found:    true,
		Granted:  true,
		LayoutID: layoutID,
		Config:   rawConfig(cfg),
	}, nil
}

// Heartbeat keeps an admitted session's claim alive. Renewal is the
// same conditional claim as acquisition, so a heartbeat against a
// lapsed slot re-acquires it, and a heartbeat after a takeover fails.
// An unknown token matches no row and reports lost the same way.
func (s *PublicViewService) Heartbeat(ctx context.Context, req HeartbeatRequest) (HeartbeatResult, error) {
	if req.Token == "" || req.SessionID == "" {
		return HeartbeatResult{}, fmt.Errorf("token and session id required")
	}

	start := time.Now()
	now := nowOr(req.Now)

	dec, err := s.coord.Attempt(ctx, req.Token, req.SessionID, now)
	s.observeLatency("heartbeat", start)
	if err != nil {
		s.incBusy("heartbeat", err)
		if s.logger != nil {
			s.logger.Error(map[string]interface{}{
				"op":      "heartbeat",
				"session": req.SessionID,
				"error":   err.Error(),
			})
		}
		return HeartbeatResult{}, err
	}
	if !dec.Granted {
		s.incHeartbeat("lost")
		if s.logger != nil {
			s.logger.Info(map[string]interface{}{
				"op":      "heartbeat",
				"session": req.SessionID,
				"renewed": false,
			})
		}
		return HeartbeatResult{Renewed: false}, nil
	}
	s.incHeartbeat("renewed")
	return HeartbeatResult{Renewed: true}, nil
}

// rawConfig returns the saved theme config as embeddable JSON. Configs
// are stored as JSON text; anything unparseable is passed through as a
// JSON string rather than corrupting the response.
func rawConfig(cfg sql.NullString) json.RawMessage {
	if !cfg.Valid || cfg.String == "" {
		return nil
	}
	if json.Valid([]byte(cfg.String)) {
		return json.RawMessage(cfg.String)
	}
	quoted, _ := json.Marshal(cfg.String)
	return quoted
}
