package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/orbiodesigns/themestore/internal/obs"
)

type CouponService struct {
	db     *sql.DB
	logger *obs.Logger
}

func NewCouponService(db *sql.DB, logger *obs.Logger) *CouponService {
	return &CouponService{db: db, logger: logger}
}

// Check validates a coupon against a specific layout for the checkout
// UI. Invalid coupons are a normal answer, not an error.
func (s *CouponService) Check(ctx context.Context, code, layoutID string, now time.Time) (CouponCheck, error) {
	c, err := s.get(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return CouponCheck{Valid: false, Message: "Invalid code"}, nil
	}
	if err != nil {
		return CouponCheck{}, err
	}

	if c.LayoutID != "" && c.LayoutID != layoutID {
		return CouponCheck{Valid: false, Message: "Coupon not valid for this product"}, nil
	}
	now = nowOr(now)
	if c.ExpiryDate != nil && c.ExpiryDate.Before(now) {
		return CouponCheck{Valid: false, Message: "Coupon expired"}, nil
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return CouponCheck{Valid: false, Message: "Coupon usage limit reached"}, nil
	}

	return CouponCheck{Valid: true, Type: c.DiscountType, Value: c.DiscountValue}, nil
}

// lookupValid is the order-time revalidation: expiry and usage limit
// only, silently skipping layout restriction the way the checkout
// always has.
func (s *CouponService) lookupValid(ctx context.Context, code string, now time.Time) (*Coupon, error) {
	c, err := s.get(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	now = nowOr(now)
	if c.ExpiryDate != nil && !c.ExpiryDate.After(now) {
		return nil, nil
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return nil, nil
	}
	return &c, nil
}

// applyDiscount applies a coupon to an amount with the store's floor
// price of 1.
func applyDiscount(amount float64, c *Coupon) float64 {
	if c == nil {
		return amount
	}
	if c.DiscountType == "PERCENT" {
		amount -= amount * (c.DiscountValue / 100)
	} else {
		amount -= c.DiscountValue
	}
	if amount < 1 {
		amount = 1
	}
	return amount
}

func (s *CouponService) get(ctx context.Context, code string) (Coupon, error) {
	var (
		c          Coupon
		desc       sql.NullString
		layoutID   sql.NullString
		expiryNs   sql.NullInt64
		usageLimit sql.NullInt64
		createdNs  int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT code, discount_type, discount_value, description, layout_id, expiry_ns, usage_limit, usage_count, created_at_ns
FROM coupons WHERE code = ?;
`, code).Scan(&c.Code, &c.DiscountType, &c.DiscountValue, &desc, &layoutID,
		&expiryNs, &usageLimit, &c.UsageCount, &createdNs)
	if errors.Is(err, sql.ErrNoRows) {
		return Coupon{}, ErrNotFound
	}
	if err != nil {
		return Coupon{}, err
	}
	c.Description = desc.String
	c.LayoutID = layoutID.String
	if expiryNs.Valid {
		t := time.Unix(0, expiryNs.Int64)
		c.ExpiryDate = &t
	}
	c.UsageLimit = usageLimit.Int64
	c.CreatedAt = time.Unix(0, createdNs)
	return c, nil
}

// List returns all coupons with the restricted layout's name joined
// in, newest first.
func (s *CouponService) List(ctx context.Context) ([]Coupon, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.code, c.discount_type, c.discount_value, c.description, c.layout_id,
       c.expiry_ns, c.usage_limit, c.usage_count, c.created_at_ns, l.name
FROM coupons c
LEFT JOIN layouts l ON c.layout_id = l.id
ORDER BY c.created_at_ns DESC;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Coupon{}
	for rows.Next() {
		var (
			c          Coupon
			desc       sql.NullString
			layoutID   sql.NullString
			expiryNs   sql.NullInt64
			usageLimit sql.NullInt64
			createdNs  int64
			layoutName sql.NullString
		)
		if err := rows.Scan(&c.Code, &c.DiscountType, &c.DiscountValue, &desc, &layoutID,
			&expiryNs, &usageLimit, &c.UsageCount, &createdNs, &layoutName); err != nil {
			return nil, err
		}
		c.Description = desc.String
		c.LayoutID = layoutID.String
		if expiryNs.Valid {
			t := time.Unix(0, expiryNs.Int64)
			c.ExpiryDate = &t
		}
		c.UsageLimit = usageLimit.Int64
		c.CreatedAt = time.Unix(0, createdNs)
		c.LayoutName = layoutName.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *CouponService) Create(ctx context.Context, c Coupon, now time.Time) error {
	if c.Code == "" || c.DiscountType == "" {
		return ErrMissingFields
	}
	var layoutID interface{}
	if c.LayoutID != "" {
		layoutID = c.LayoutID
	}
	var expiryNs interface{}
	if c.ExpiryDate != nil {
		expiryNs = c.ExpiryDate.UnixNano()
	}
	var usageLimit interface{}
	if c.UsageLimit > 0 {
		usageLimit = c.UsageLimit
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO coupons (code, discount_type, discount_value, description, layout_id, expiry_ns, usage_limit, created_at_ns)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`, c.Code, c.DiscountType, c.DiscountValue, c.Description, layoutID, expiryNs, usageLimit,
		nowOr(now).UnixNano())
	return err
}

func (s *CouponService) Delete(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM coupons WHERE code = ?;`, code)
	return err
}
