package model

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/orbiodesigns/themestore/internal/obs"
	"github.com/orbiodesigns/themestore/internal/payment"
)

type fakeGateway struct {
	orders     []payment.CreateOrderRequest
	nextID     string
	method     string
	fetchErr   error
	signatures map[string]bool
}

func (g *fakeGateway) CreateOrder(_ context.Context, req payment.CreateOrderRequest) (payment.Order, error) {
	g.orders = append(g.orders, req)
	id := g.nextID
	if id == "" {
		id = "order_fake_1"
	}
	return payment.Order{ID: id, AmountPaise: req.AmountPaise, Currency: req.Currency, Receipt: req.Receipt}, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (payment.Payment, error) {
	if g.fetchErr != nil {
		return payment.Payment{}, g.fetchErr
	}
	m := g.method
	if m == "" {
		m = "upi"
	}
	return payment.Payment{ID: paymentID, Method: m, Status: "captured"}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	if g.signatures == nil {
		return signature == "valid"
	}
	return g.signatures[orderID+"|"+paymentID+"|"+signature]
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func seedUser(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	res, err := db.Exec(`
INSERT INTO users (full_name, email, password_hash, created_at_ns)
VALUES ('Test User', 'test@gmail.com', 'x', ?);
`, time.Now().UnixNano())
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func seedPricedLayout(t *testing.T, db *sql.DB, id string, base, mo1, mo3, mo6, yr float64) {
	t.Helper()
	_, err := db.Exec(`
INSERT INTO layouts (id, name, base_price, price_1mo, price_3mo, price_6mo, price_1yr, is_active)
VALUES (?, ?, ?, ?, ?, ?, ?, 1);
`, id, "Layout "+id, base, mo1, mo3, mo6, yr)
	if err != nil {
		t.Fatalf("seed layout: %v", err)
	}
}

func seedProduct(t *testing.T, db *sql.DB, name string, price float64) int64 {
	t.Helper()
	res, err := db.Exec(`
INSERT INTO products (name, price, file_url, is_active, created_at_ns)
VALUES (?, ?, 'https://cdn.example/file.zip', 1, ?);
`, name, price, time.Now().UnixNano())
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func newPayments(t *testing.T, db *sql.DB, gw payment.Gateway) *PaymentService {
	t.Helper()
	return NewPaymentService(db, nil, obs.NewUnregisteredMetrics(), gw)
}

func TestTierPrice(t *testing.T) {
	configured := Layout{BasePrice: 100, Price1Mo: 90, Price3Mo: 240, Price6Mo: 420, Price1Yr: 700}
	bare := Layout{BasePrice: 100}

	cases := []struct {
		name   string
		layout Layout
		months int
		want   float64
	}{
		{"configured 1mo", configured, 1, 90},
		{"configured 3mo", configured, 3, 240},
		{"configured 6mo", configured, 6, 420},
		{"configured 1yr", configured, 12, 700},
		{"fallback 1mo", bare, 1, 100},
		{"fallback 3mo", bare, 3, 250},
		{"fallback 6mo", bare, 6, 450},
		{"fallback 1yr", bare, 12, 800},
		{"odd months", bare, 5, 100},
	}
	for _, tc := range cases {
		if got := tierPrice(tc.layout, tc.months); got != tc.want {
			t.Errorf("%s: tierPrice = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCreateOrderPricesOnServer(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db)
	seedPricedLayout(t, db, "neon", 100, 0, 0, 0, 0)
	prodID := seedProduct(t, db, "Alert Pack", 49.5)

	gw := &fakeGateway{}
	svc := newPayments(t, db, gw)
	now := time.Now()

	res, err := svc.CreateOrder(context.Background(), OrderRequest{
		UserID:     userID,
		Email:      "test@gmail.com",
		LayoutID:   "neon",
		Months:     3,
		ProductIDs: []int64{prodID},
		Now:        now,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	// 100 * 2.5 fallback + 49.5 product
	if res.Amount != 299.5 {
		t.Fatalf("amount = %v, want 299.5", res.Amount)
	}
	if len(gw.orders) != 1 || gw.orders[0].AmountPaise != 29950 {
		t.Fatalf("gateway got %+v, want 29950 paise", gw.orders)
	}
	if res.KeyID != "rzp_test_key" {
		t.Fatalf("key id = %q", res.KeyID)
	}

	var status string
	if err := db.QueryRow(
		`SELECT status FROM transactions WHERE payment_session_id = ?;`, res.OrderID).Scan(&status); err != nil {
		t.Fatalf("read transaction: %v", err)
	}
	if status != "PENDING" {
		t.Fatalf("status = %q, want PENDING", status)
	}
}

func TestCreateOrderRejectsUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db)
	svc := newPayments(t, db, &fakeGateway{})

	_, err := svc.CreateOrder(context.Background(), OrderRequest{
		UserID:     userID,
		ProductIDs: []int64{999},
	})
	if err != ErrInvalidProducts {
		t.Fatalf("err = %v, want ErrInvalidProducts", err)
	}
}

func TestCreateOrderAppliesCoupon(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db)
	seedPricedLayout(t, db, "neon", 0, 200, 0, 0, 0)
	now := time.Now()
	if _, err := db.Exec(`
INSERT INTO coupons (code, discount_type, discount_value, created_at_ns) VALUES ('HALF', 'PERCENT', 50, ?);
`, now.UnixNano()); err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	svc := newPayments(t, db, &fakeGateway{})
	res, err := svc.CreateOrder(context.Background(), OrderRequest{
		UserID: userID, LayoutID: "neon", Months: 1, CouponCode: "HALF", Now: now,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if res.Amount != 100 {
		t.Fatalf("amount = %v, want 100", res.Amount)
	}
}

func TestApplyDiscountFloor(t *testing.T) {
	percent := &Coupon{DiscountType: "PERCENT", DiscountValue: 100}
	if got := applyDiscount(500, percent); got != 1 {
		t.Fatalf("100%% discount = %v, want floor 1", got)
	}
	flat := &Coupon{DiscountType: "FLAT", DiscountValue: 600}
	if got := applyDiscount(500, flat); got != 1 {
		t.Fatalf("oversized flat discount = %v, want floor 1", got)
	}
	if got := applyDiscount(500, &Coupon{DiscountType: "FLAT", DiscountValue: 100}); got != 400 {
		t.Fatalf("flat discount = %v, want 400", got)
	}
}

func TestVerifyPaymentActivatesOnce(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db)
	seedPricedLayout(t, db, "neon", 0, 200, 0, 0, 0)

	gw := &fakeGateway{}
	svc := newPayments(t, db, gw)
	now := time.Now()

	order, err := svc.CreateOrder(context.Background(), OrderRequest{
		UserID: userID, LayoutID: "neon", Months: 1, Now: now,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	verify := func() VerifyResult {
		t.Helper()
		res, err := svc.VerifyPayment(context.Background(), VerifyRequest{
			OrderID: order.OrderID, PaymentID: "pay_1", Signature: "valid", Now: now,
		})
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		return res
	}

	res := verify()
	if res.User == nil || len(res.User.Purchases) != 1 {
		t.Fatalf("first verify: %+v", res.User)
	}
	token := res.User.Purchases[0].PublicToken
	if token == "" {
		t.Fatal("subscription has no public token")
	}

	// A duplicate callback must not mint a second subscription.
	res2 := verify()
	if len(res2.User.Purchases) != 1 {
		t.Fatalf("duplicate verify added a subscription: %d", len(res2.User.Purchases))
	}

	var status string
	if err := db.QueryRow(
		`SELECT status FROM transactions WHERE payment_session_id = ?;`, order.OrderID).Scan(&status); err != nil {
		t.Fatalf("read transaction: %v", err)
	}
	if status != "SUCCESS" {
		t.Fatalf("status = %q, want SUCCESS", status)
	}
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	db := newTestDB(t)
	svc := newPayments(t, db, &fakeGateway{})

	_, err := svc.VerifyPayment(context.Background(), VerifyRequest{
		OrderID: "order_x", PaymentID: "pay_x", Signature: "forged",
	})
	if err != ErrInvalidSignature {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newPayments(t, db, &fakeGateway{})

	_, err := svc.VerifyPayment(context.Background(), VerifyRequest{
		OrderID: "order_missing", PaymentID: "pay_x", Signature: "valid",
	})
	if err != ErrTransactionNotFound {
		t.Fatalf("err = %v, want ErrTransactionNotFound", err)
	}
}

func TestVerifyPaymentProductOrder(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db)
	prodID := seedProduct(t, db, "Alert Pack", 50)

	svc := newPayments(t, db, &fakeGateway{})
	now := time.Now()

	order, err := svc.CreateOrder(context.Background(), OrderRequest{
		UserID: userID, ProductIDs: []int64{prodID}, Now: now,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	res, err := svc.VerifyPayment(context.Background(), VerifyRequest{
		OrderID: order.OrderID, PaymentID: "pay_2", Signature: "valid", Now: now,
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(res.User.Purchases) != 0 {
		t.Fatalf("product-only order created a subscription")
	}
	if len(res.User.ProductPurchases) != 1 || res.User.ProductPurchases[0].ProductID != prodID {
		t.Fatalf("product purchases: %+v", res.User.ProductPurchases)
	}
}
