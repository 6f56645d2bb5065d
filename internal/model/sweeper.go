package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/orbiodesigns/themestore/internal/obs"
	"github.com/orbiodesigns/themestore/internal/sessionlock"
)

// SessionSweeper periodically
// 1) counts live overlay sessions -> gauge
// 2) clears session locks whose heartbeat lapsed past the timeout.
// The sweep is hygiene only: lock correctness comes from the lazy
// timeout check inside every claim, so a slow or stopped sweeper never
// blocks a takeover.
type SessionSweeper struct {
	db       *sql.DB
	logger   *obs.Logger
	metrics  *obs.Metrics
	interval time.Duration
}

func NewSessionSweeper(db *sql.DB, logger *obs.Logger, metrics *obs.Metrics, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &SessionSweeper{
		db:       db,
		logger:   logger,
		metrics:  metrics,
		interval: interval,
	}
}

func (m *SessionSweeper) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()

	// Run once immediately
	m.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.sweepOnce(ctx)
		}
	}
}

func (m *SessionSweeper) sweepOnce(ctx context.Context) {
	start := time.Now()
	cutoffNs := sessionlock.FreeBefore(start).UnixNano()

	var liveCount int64
	err := m.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM subscriptions
WHERE active_session_id IS NOT NULL
  AND last_heartbeat_ns >= ?;
`, cutoffNs).Scan(&liveCount)

	if err == nil && m.metrics != nil && m.metrics.SessionsLive != nil {
		m.metrics.SessionsLive.Set(float64(liveCount))
	}

	res, err2 := m.db.ExecContext(ctx, `
UPDATE subscriptions
SET active_session_id = NULL,
    last_heartbeat_ns = NULL
WHERE active_session_id IS NOT NULL
  AND last_heartbeat_ns < ?;
`, cutoffNs)

	var cleared int64
	if err2 == nil && res != nil {
		cleared, _ = res.RowsAffected()
		if cleared > 0 && m.metrics != nil && m.metrics.SessionsReaped != nil {
			m.metrics.SessionsReaped.Add(float64(cleared))
		}
	}

	if m.logger != nil {
		fields := map[string]interface{}{
			"op":         "session_sweep",
			"live":       liveCount,
			"cleared":    cleared,
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if err != nil {
			fields["count_err"] = err.Error()
		}
		if err2 != nil {
			fields["clear_err"] = err2.Error()
		}
		if cleared > 0 || err != nil || err2 != nil {
			m.logger.Info(fields)
		}
	}
}
