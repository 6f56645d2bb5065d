package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/orbiodesigns/themestore/internal/model"
	"github.com/orbiodesigns/themestore/internal/obs"
	"github.com/orbiodesigns/themestore/internal/payment"
	"github.com/orbiodesigns/themestore/internal/storage"
)

type stubGateway struct{}

func (stubGateway) CreateOrder(_ context.Context, req payment.CreateOrderRequest) (payment.Order, error) {
	return payment.Order{ID: "order_stub", AmountPaise: req.AmountPaise, Currency: req.Currency}, nil
}
func (stubGateway) FetchPayment(_ context.Context, id string) (payment.Payment, error) {
	return payment.Payment{ID: id, Method: "upi"}, nil
}
func (stubGateway) VerifySignature(_, _, sig string) bool { return sig == "valid" }
func (stubGateway) KeyID() string                         { return "rzp_test" }

type testEnv struct {
	srv *httptest.Server
	db  *storage.DB
	svc Services
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.Config{
		Path: filepath.Join(t.TempDir(), "api.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	metrics := obs.NewUnregisteredMetrics()
	svc := Services{
		Auth:      model.NewAuthService(db.DB, nil, []byte("test-secret")),
		Catalog:   model.NewCatalogService(db.DB, nil),
		Purchases: model.NewPurchaseService(db.DB, nil),
		Coupons:   model.NewCouponService(db.DB, nil),
		Payments:  model.NewPaymentService(db.DB, nil, metrics, stubGateway{}),
		Admin:     model.NewAdminService(db.DB, nil),
		Support:   model.NewSupportService(db.DB, nil),
		Public:    model.NewPublicViewService(db.DB, nil, metrics),
	}
	server := NewServer(svc, Options{ClientURL: "*"}, nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, db: db, svc: svc}
}

func (e *testEnv) seedOverlay(t *testing.T, token string, expiry time.Time) {
	t.Helper()
	if _, err := e.db.Exec(`
INSERT INTO layouts (id, name, base_price, is_active) VALUES ('neon', 'Neon', 100, 1);
`); err != nil {
		t.Fatalf("seed layout: %v", err)
	}
	if _, err := e.db.Exec(`
INSERT INTO subscriptions (user_id, layout_id, start_ns, expiry_ns, price_paid, public_token, saved_theme_config)
VALUES (1, 'neon', ?, ?, 100, ?, '{"accent":"blue"}');
`, time.Now().UnixNano(), expiry.UnixNano(), token); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body, out interface{}) int {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestResolveUnknownToken404(t *testing.T) {
	env := newEnv(t)
	code := getJSON(t, env.srv.URL+"/api/public/ghost?sessionId=s1", nil)
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestResolveRequiresSessionID(t *testing.T) {
	env := newEnv(t)
	code := getJSON(t, env.srv.URL+"/api/public/tok", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
}

func TestResolveGrantThenConflict(t *testing.T) {
	env := newEnv(t)
	env.seedOverlay(t, "tok-1", time.Now().Add(24*time.Hour))

	var first struct {
		LayoutID  string          `json:"layoutId"`
		Config    json.RawMessage `json:"config"`
		IsExpired bool            `json:"isExpired"`
	}
	code := getJSON(t, env.srv.URL+"/api/public/tok-1?sessionId=A", &first)
	if code != http.StatusOK {
		t.Fatalf("first resolve status = %d", code)
	}
	if first.LayoutID != "neon" || first.IsExpired {
		t.Fatalf("first resolve body: %+v", first)
	}
	if string(first.Config) != `{"accent":"blue"}` {
		t.Fatalf("config = %s", first.Config)
	}

	var conflict struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	code = getJSON(t, env.srv.URL+"/api/public/tok-1?sessionId=B", &conflict)
	if code != http.StatusConflict {
		t.Fatalf("rival resolve status = %d, want 409", code)
	}
	if conflict.Error != "Session Active on another device" || conflict.Message == "" {
		t.Fatalf("conflict body: %+v", conflict)
	}
}

func TestResolveExpiredOverlay(t *testing.T) {
	env := newEnv(t)
	env.seedOverlay(t, "tok-old", time.Now().Add(-time.Hour))

	var body struct {
		IsExpired bool `json:"isExpired"`
	}
	code := getJSON(t, env.srv.URL+"/api/public/tok-old?sessionId=A", &body)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if !body.IsExpired {
		t.Fatal("expired overlay not flagged")
	}
}

func TestHeartbeatContract(t *testing.T) {
	env := newEnv(t)
	env.seedOverlay(t, "tok-1", time.Now().Add(24*time.Hour))

	if code := getJSON(t, env.srv.URL+"/api/public/tok-1?sessionId=A", nil); code != http.StatusOK {
		t.Fatalf("resolve status = %d", code)
	}

	var ok struct {
		Success bool `json:"success"`
	}
	code := postJSON(t, env.srv.URL+"/api/public/heartbeat",
		map[string]string{"token": "tok-1", "sessionId": "A"}, &ok)
	if code != http.StatusOK || !ok.Success {
		t.Fatalf("holder heartbeat: status=%d body=%+v", code, ok)
	}

	var lost struct {
		Error string `json:"error"`
	}
	code = postJSON(t, env.srv.URL+"/api/public/heartbeat",
		map[string]string{"token": "tok-1", "sessionId": "B"}, &lost)
	if code != http.StatusConflict {
		t.Fatalf("rival heartbeat status = %d, want 409", code)
	}
	if lost.Error != "Lock lost or stolen" {
		t.Fatalf("rival heartbeat body: %+v", lost)
	}

	// Unknown token matches no row and reads as lost too.
	code = postJSON(t, env.srv.URL+"/api/public/heartbeat",
		map[string]string{"token": "ghost", "sessionId": "A"}, nil)
	if code != http.StatusConflict {
		t.Fatalf("unknown token heartbeat status = %d, want 409", code)
	}
}

func TestAuthFlowOverHTTP(t *testing.T) {
	env := newEnv(t)

	var reg struct {
		Token string            `json:"token"`
		User  model.UserProfile `json:"user"`
	}
	code := postJSON(t, env.srv.URL+"/api/auth/register", map[string]interface{}{
		"name": "Streamer", "email": "streamer@gmail.com", "password": "longenough",
	}, &reg)
	if code != http.StatusCreated {
		t.Fatalf("register status = %d", code)
	}
	if reg.Token == "" || reg.User.Email != "streamer@gmail.com" {
		t.Fatalf("register body: %+v", reg)
	}

	// Profile requires the bearer token.
	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/user/profile", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("profile without token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated profile status = %d, want 401", resp.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer "+reg.Token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status = %d", resp.StatusCode)
	}
	var profile model.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Email != "streamer@gmail.com" {
		t.Fatalf("profile: %+v", profile)
	}
}

func TestAdminGuard(t *testing.T) {
	env := newEnv(t)

	var reg struct {
		Token string `json:"token"`
	}
	if code := postJSON(t, env.srv.URL+"/api/auth/register", map[string]interface{}{
		"email": "user@gmail.com", "password": "longenough",
	}, &reg); code != http.StatusCreated {
		t.Fatalf("register status = %d", code)
	}

	// A user token must not open the admin console.
	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+reg.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("admin stats: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("user token on admin route status = %d, want 403", resp.StatusCode)
	}
}

func TestRateLimitRejects(t *testing.T) {
	db, err := storage.Open(context.Background(), storage.Config{
		Path: filepath.Join(t.TempDir(), "rl.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	metrics := obs.NewUnregisteredMetrics()
	svc := Services{
		Auth:    model.NewAuthService(db.DB, nil, []byte("s")),
		Catalog: model.NewCatalogService(db.DB, nil),
		Public:  model.NewPublicViewService(db.DB, nil, metrics),
		Admin:   model.NewAdminService(db.DB, nil),
	}
	server := NewServer(svc, Options{ClientURL: "*", RatePerSec: 1, RateBurst: 2}, nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	var limited bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(fmt.Sprintf("%s/api/health", ts.URL))
		if err != nil {
			t.Fatalf("health: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Fatal("burst of requests never hit the limiter")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newEnv(t)
	req, _ := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/layouts", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS origin header")
	}
}
