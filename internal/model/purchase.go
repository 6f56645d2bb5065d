package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orbiodesigns/themestore/internal/obs"
)

type PurchaseService struct {
	db     *sql.DB
	logger *obs.Logger
}

func NewPurchaseService(db *sql.DB, logger *obs.Logger) *PurchaseService {
	return &PurchaseService{db: db, logger: logger}
}

type PurchaseRequest struct {
	UserID        int64
	LayoutID      string
	DurationLabel string
	Months        int
	Price         float64
	Now           time.Time
}

// Purchase records a direct (already-paid) subscription and mints its
// public overlay token. The lock fields start NULL: the overlay has
// never been viewed.
func (s *PurchaseService) Purchase(ctx context.Context, req PurchaseRequest) (Purchase, error) {
	if req.UserID <= 0 || req.LayoutID == "" {
		return Purchase{}, ErrMissingFields
	}
	months := req.Months
	if months <= 0 {
		months = 1
	}

	now := nowOr(req.Now)
	expiry := now.AddDate(0, months, 0)
	token := uuid.NewString()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO subscriptions (user_id, layout_id, start_ns, expiry_ns, price_paid, public_token)
VALUES (?, ?, ?, ?, ?, ?);
`, req.UserID, req.LayoutID, now.UnixNano(), expiry.UnixNano(), req.Price, token)
	if err != nil {
		return Purchase{}, err
	}

	if s.logger != nil {
		s.logger.Info(map[string]interface{}{
			"op":      "purchase",
			"user_id": req.UserID,
			"layout":  req.LayoutID,
			"months":  months,
		})
	}

	return Purchase{
		LayoutID:      req.LayoutID,
		PurchaseDate:  now,
		ExpiryDate:    expiry,
		DurationLabel: req.DurationLabel,
		PricePaid:     req.Price,
		PublicToken:   token,
	}, nil
}

// SaveThemeConfig stores the editor's customization for the user's
// subscription to a layout.
func (s *PurchaseService) SaveThemeConfig(ctx context.Context, userID int64, layoutID string, cfg json.RawMessage) error {
	if userID <= 0 || layoutID == "" {
		return ErrMissingFields
	}
	if len(cfg) > 0 && !json.Valid(cfg) {
		return fmt.Errorf("config is not valid JSON")
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE subscriptions SET saved_theme_config = ? WHERE user_id = ? AND layout_id = ?;
`, string(cfg), userID, layoutID)
	return err
}

// UserSubscriptions is the admin view, lock state included.
func (s *PurchaseService) UserSubscriptions(ctx context.Context, userID int64) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, layout_id, start_ns, expiry_ns, price_paid, public_token,
       order_id, payment_method, active_session_id, last_heartbeat_ns
FROM subscriptions WHERE user_id = ?;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Subscription{}
	for rows.Next() {
		var (
			sub        Subscription
			startNs    int64
			expiryNs   int64
			orderID    sql.NullString
			method     sql.NullString
			sessionID  sql.NullString
			lastBeatNs sql.NullInt64
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.LayoutID, &startNs, &expiryNs,
			&sub.PricePaid, &sub.PublicToken, &orderID, &method, &sessionID, &lastBeatNs); err != nil {
			return nil, err
		}
		sub.StartDate = time.Unix(0, startNs)
		sub.ExpiryDate = time.Unix(0, expiryNs)
		sub.OrderID = orderID.String
		sub.PaymentMethod = method.String
		sub.ActiveSessionID = sessionID.String
		if lastBeatNs.Valid {
			t := time.Unix(0, lastBeatNs.Int64)
			sub.LastHeartbeat = &t
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// GrantSubscription gives a user a layout for free (admin action).
func (s *PurchaseService) GrantSubscription(ctx context.Context, userID int64, layoutID string, months int, now time.Time) error {
	if userID <= 0 || layoutID == "" {
		return ErrMissingFields
	}
	if months <= 0 {
		months = 1
	}
	now = nowOr(now)
	expiry := now.AddDate(0, months, 0)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO subscriptions (user_id, layout_id, start_ns, expiry_ns, price_paid, public_token)
VALUES (?, ?, ?, ?, 0, ?);
`, userID, layoutID, now.UnixNano(), expiry.UnixNano(), uuid.NewString())
	return err
}

// ExtendSubscription pushes an existing subscription's expiry forward
// by whole months.
func (s *PurchaseService) ExtendSubscription(ctx context.Context, userID, subID int64, months int) error {
	if months <= 0 {
		months = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var expiryNs int64
	err = tx.QueryRowContext(ctx,
		`SELECT expiry_ns FROM subscriptions WHERE id = ? AND user_id = ?;`, subID, userID).Scan(&expiryNs)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}

	newExpiry := time.Unix(0, expiryNs).AddDate(0, months, 0)
	if _, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET expiry_ns = ? WHERE id = ? AND user_id = ?;`,
		newExpiry.UnixNano(), subID, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// loadPurchases hydrates a user's subscriptions joined with layout
// display fields; shared by login and payment verification.
func loadPurchases(ctx context.Context, db *sql.DB, userID int64) ([]Purchase, error) {
	rows, err := db.QueryContext(ctx, `
SELECT s.layout_id, s.start_ns, s.expiry_ns, s.price_paid, s.public_token,
       s.saved_theme_config, s.order_id, s.payment_method, l.name, l.thumbnail_url
FROM subscriptions s
JOIN layouts l ON s.layout_id = l.id
WHERE s.user_id = ?;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Purchase{}
	for rows.Next() {
		var (
			p        Purchase
			startNs  int64
			expiryNs int64
			cfg      sql.NullString
			orderID  sql.NullString
			method   sql.NullString
			thumb    sql.NullString
		)
		if err := rows.Scan(&p.LayoutID, &startNs, &expiryNs, &p.PricePaid, &p.PublicToken,
			&cfg, &orderID, &method, &p.LayoutName, &thumb); err != nil {
			return nil, err
		}
		p.PurchaseDate = time.Unix(0, startNs)
		p.ExpiryDate = time.Unix(0, expiryNs)
		p.DurationLabel = "Custom"
		p.SavedThemeConfig = rawConfig(cfg)
		p.OrderID = orderID.String
		p.PaymentMethod = method.String
		p.ThumbnailURL = thumb.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func loadProductPurchases(ctx context.Context, db *sql.DB, userID int64) ([]ProductPurchase, error) {
	rows, err := db.QueryContext(ctx, `
SELECT pp.id, pp.product_id, pp.price_paid, pp.order_id, pp.purchased_at_ns,
       p.name, p.description, p.file_url, p.file_type, p.thumbnail_url
FROM product_purchases pp
JOIN products p ON pp.product_id = p.id
WHERE pp.user_id = ?
ORDER BY pp.purchased_at_ns DESC;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ProductPurchase{}
	for rows.Next() {
		var (
			pp       ProductPurchase
			orderID  sql.NullString
			boughtNs int64
			desc     sql.NullString
			ftype    sql.NullString
			thumb    sql.NullString
		)
		if err := rows.Scan(&pp.ID, &pp.ProductID, &pp.PricePaid, &orderID, &boughtNs,
			&pp.ProductName, &desc, &pp.FileURL, &ftype, &thumb); err != nil {
			return nil, err
		}
		pp.OrderID = orderID.String
		pp.PurchasedAt = time.Unix(0, boughtNs)
		pp.ProductDescription = desc.String
		pp.FileType = ftype.String
		pp.ThumbnailURL = thumb.String
		out = append(out, pp)
	}
	return out, rows.Err()
}
