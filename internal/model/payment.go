package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/orbiodesigns/themestore/internal/obs"
	"github.com/orbiodesigns/themestore/internal/payment"
)

// PaymentService creates gateway orders with server-side pricing and
// turns verified payments into subscriptions and product purchases.
// The gateway itself is an external collaborator behind an interface.
type PaymentService struct {
	db      *sql.DB
	logger  *obs.Logger
	metrics *obs.Metrics
	gateway payment.Gateway
	coupons *CouponService
}

func NewPaymentService(db *sql.DB, logger *obs.Logger, metrics *obs.Metrics, gw payment.Gateway) *PaymentService {
	return &PaymentService{
		db:      db,
		logger:  logger,
		metrics: metrics,
		gateway: gw,
		coupons: NewCouponService(db, logger),
	}
}

type OrderRequest struct {
	UserID     int64
	Email      string
	Phone      string
	LayoutID   string
	Months     int
	CouponCode string
	ProductIDs []int64
	Now        time.Time
}

type OrderResult struct {
	OrderID  string  `json:"orderId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	KeyID    string  `json:"keyId"`
	Contact  string  `json:"contact,omitempty"`
	Email    string  `json:"email,omitempty"`
}

type orderMetadata struct {
	ProductIDs []int64 `json:"productIds"`
	Months     int     `json:"months"`
}

// CreateOrder prices the cart on the server, creates the gateway
// order, and records a PENDING transaction keyed by an internal
// receipt id. The gateway's order id goes into payment_session_id so
// verification can find the row again.
func (s *PaymentService) CreateOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if req.UserID <= 0 {
		return OrderResult{}, ErrMissingFields
	}
	if req.LayoutID == "" && len(req.ProductIDs) == 0 {
		return OrderResult{}, ErrMissingFields
	}
	now := nowOr(req.Now)

	var amount float64

	if req.LayoutID != "" {
		l, err := s.layoutPrices(ctx, req.LayoutID)
		if err != nil {
			return OrderResult{}, err
		}
		amount = tierPrice(l, req.Months)
	}

	if len(req.ProductIDs) > 0 {
		total, err := s.productTotal(ctx, req.ProductIDs)
		if err != nil {
			return OrderResult{}, err
		}
		amount += total
	}

	if req.CouponCode != "" {
		c, err := s.coupons.lookupValid(ctx, req.CouponCode, now)
		if err != nil {
			return OrderResult{}, err
		}
		amount = applyDiscount(amount, c)
	}

	amount = round2(amount)
	receipt := fmt.Sprintf("ORDER_%d_%d", now.UnixMilli(), req.UserID)

	order, err := s.gateway.CreateOrder(ctx, payment.CreateOrderRequest{
		AmountPaise: int64(math.Round(amount * 100)),
		Currency:    "INR",
		Receipt:     receipt,
		Notes: map[string]string{
			"userId": strconv.FormatInt(req.UserID, 10),
			"phone":  req.Phone,
			"email":  req.Email,
		},
	})
	if err != nil {
		s.incOrder("failed")
		return OrderResult{}, err
	}

	meta, _ := json.Marshal(orderMetadata{ProductIDs: req.ProductIDs, Months: req.Months})
	var layoutID interface{}
	if req.LayoutID != "" {
		layoutID = req.LayoutID
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO transactions (order_id, user_id, layout_id, amount, status, payment_session_id, metadata, created_at_ns)
VALUES (?, ?, ?, ?, 'PENDING', ?, ?, ?);
`, receipt, req.UserID, layoutID, amount, order.ID, string(meta), now.UnixNano()); err != nil {
		return OrderResult{}, err
	}

	s.incOrder("created")
	if s.logger != nil {
		s.logger.Info(map[string]interface{}{
			"op":       "create_order",
			"user_id":  req.UserID,
			"receipt":  receipt,
			"gw_order": order.ID,
			"amount":   amount,
		})
	}

	return OrderResult{
		OrderID:  order.ID,
		Amount:   amount,
		Currency: "INR",
		KeyID:    s.gateway.KeyID(),
		Contact:  req.Phone,
		Email:    req.Email,
	}, nil
}

type VerifyRequest struct {
	OrderID   string // gateway order id from the checkout callback
	PaymentID string
	Signature string
	Now       time.Time
}

type VerifyResult struct {
	Status string
	User   *UserProfile
}

// VerifyPayment checks the checkout signature, flips the transaction
// PENDING -> SUCCESS exactly once (rows-affected guard makes repeat
// callbacks harmless), and activates whatever the order bought.
func (s *PaymentService) VerifyPayment(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return VerifyResult{}, ErrMissingFields
	}
	if !s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		s.incOrder("failed")
		return VerifyResult{}, ErrInvalidSignature
	}
	now := nowOr(req.Now)

	// Payment method is display-only; a fetch failure must not fail
	// verification.
	method := "Razorpay"
	if p, err := s.gateway.FetchPayment(ctx, req.PaymentID); err == nil && p.Method != "" {
		method = p.Method
	} else if err != nil && s.logger != nil {
		s.logger.Warn(map[string]interface{}{"op": "verify_payment", "fetch_err": err.Error()})
	}

	var (
		orderID  string
		userID   int64
		layoutID sql.NullString
		amount   float64
		meta     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT order_id, user_id, layout_id, amount, metadata
FROM transactions WHERE payment_session_id = ?;
`, req.OrderID).Scan(&orderID, &userID, &layoutID, &amount, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return VerifyResult{}, ErrTransactionNotFound
	}
	if err != nil {
		return VerifyResult{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = 'SUCCESS' WHERE order_id = ? AND status = 'PENDING';`, orderID)
	if err != nil {
		return VerifyResult{}, err
	}
	flipped, _ := res.RowsAffected()

	if flipped > 0 {
		var md orderMetadata
		if meta.Valid && meta.String != "" {
			_ = json.Unmarshal([]byte(meta.String), &md)
		}
		if md.Months <= 0 {
			md.Months = 1
		}

		if layoutID.Valid && layoutID.String != "" {
			expiry := now.AddDate(0, md.Months, 0)
			if _, err := s.db.ExecContext(ctx, `
INSERT INTO subscriptions (user_id, layout_id, start_ns, expiry_ns, price_paid, public_token, order_id, payment_method)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`, userID, layoutID.String, now.UnixNano(), expiry.UnixNano(), amount, uuid.NewString(), orderID, method); err != nil {
				return VerifyResult{}, err
			}
		}

		if len(md.ProductIDs) > 0 {
			if err := s.recordProductPurchases(ctx, userID, orderID, md.ProductIDs, now); err != nil {
				return VerifyResult{}, err
			}
		}

		s.incOrder("verified")
		if s.logger != nil {
			s.logger.Info(map[string]interface{}{
				"op":       "verify_payment",
				"order_id": orderID,
				"user_id":  userID,
				"method":   method,
			})
		}
	}

	user, err := s.hydrateUser(ctx, userID)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Status: "SUCCESS", User: &user}, nil
}

func (s *PaymentService) layoutPrices(ctx context.Context, layoutID string) (Layout, error) {
	var l Layout
	err := s.db.QueryRowContext(ctx, `
SELECT base_price, price_1mo, price_3mo, price_6mo, price_1yr
FROM layouts WHERE id = ?;
`, layoutID).Scan(&l.BasePrice, &l.Price1Mo, &l.Price3Mo, &l.Price6Mo, &l.Price1Yr)
	if errors.Is(err, sql.ErrNoRows) {
		return Layout{}, ErrNotFound
	}
	return l, err
}

// tierPrice picks the duration price, falling back to base-price
// multiples when a tier was never configured.
func tierPrice(l Layout, months int) float64 {
	pick := func(tier, fallback float64) float64 {
		if tier > 0 {
			return tier
		}
		return fallback
	}
	switch months {
	case 1:
		return pick(l.Price1Mo, l.BasePrice)
	case 3:
		return pick(l.Price3Mo, l.BasePrice*2.5)
	case 6:
		return pick(l.Price6Mo, l.BasePrice*4.5)
	case 12:
		return pick(l.Price1Yr, l.BasePrice*8)
	default:
		return l.BasePrice
	}
}

func (s *PaymentService) productTotal(ctx context.Context, ids []int64) (float64, error) {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT price FROM products WHERE id IN (`+placeholders(len(ids))+`) AND is_active = 1;`, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var total float64
	var count int
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return 0, err
		}
		total += p
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if count != len(ids) {
		return 0, ErrInvalidProducts
	}
	return total, nil
}

func (s *PaymentService) recordProductPurchases(ctx context.Context, userID int64, orderID string, ids []int64, now time.Time) error {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, price FROM products WHERE id IN (`+placeholders(len(ids))+`);`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	type pr struct {
		id    int64
		price float64
	}
	var prods []pr
	for rows.Next() {
		var p pr
		if err := rows.Scan(&p.id, &p.price); err != nil {
			return err
		}
		prods = append(prods, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range prods {
		if _, err := s.db.ExecContext(ctx, `
INSERT INTO product_purchases (user_id, product_id, price_paid, order_id, purchased_at_ns)
VALUES (?, ?, ?, ?, ?);
`, userID, p.id, p.price, orderID, now.UnixNano()); err != nil {
			return err
		}
	}
	return nil
}

// Profile returns the user with purchases hydrated, the same shape
// login responds with.
func (s *PaymentService) Profile(ctx context.Context, userID int64) (UserProfile, error) {
	return s.hydrateUser(ctx, userID)
}

func (s *PaymentService) hydrateUser(ctx context.Context, userID int64) (UserProfile, error) {
	var (
		fullName string
		email    string
		phone    sql.NullString
		age      sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT full_name, email, phone_number, age FROM users WHERE id = ?;`, userID).
		Scan(&fullName, &email, &phone, &age)
	if errors.Is(err, sql.ErrNoRows) {
		return UserProfile{}, ErrNotFound
	}
	if err != nil {
		return UserProfile{}, err
	}

	purchases, err := loadPurchases(ctx, s.db, userID)
	if err != nil {
		return UserProfile{}, err
	}
	productPurchases, err := loadProductPurchases(ctx, s.db, userID)
	if err != nil {
		return UserProfile{}, err
	}

	return UserProfile{
		ID:               strconv.FormatInt(userID, 10),
		Name:             fullName,
		Email:            email,
		Phone:            phone.String,
		Age:              int(age.Int64),
		Purchases:        purchases,
		ProductPurchases: productPurchases,
	}, nil
}

func (s *PaymentService) incOrder(result string) {
	if s.metrics != nil {
		s.metrics.OrdersTotal.WithLabelValues(result).Inc()
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
