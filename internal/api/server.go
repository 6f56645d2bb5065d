// Package api exposes the storefront and the public overlay endpoints
// over HTTP. Handlers are stateless; all coordination happens in the
// model layer against the database.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/orbiodesigns/themestore/internal/model"
	"github.com/orbiodesigns/themestore/internal/obs"
)

type Services struct {
	Auth      *model.AuthService
	Catalog   *model.CatalogService
	Purchases *model.PurchaseService
	Coupons   *model.CouponService
	Payments  *model.PaymentService
	Admin     *model.AdminService
	Support   *model.SupportService
	Public    *model.PublicViewService
}

type Options struct {
	// ClientURL is the allowed CORS origin, "*" for any.
	ClientURL string
	// RatePerSec and RateBurst configure the global token bucket. Zero
	// disables limiting.
	RatePerSec float64
	RateBurst  int
}

type Server struct {
	svc    Services
	opts   Options
	logger *obs.Logger
	mux    *http.ServeMux
}

func NewServer(svc Services, opts Options, logger *obs.Logger) *Server {
	s := &Server{svc: svc, opts: opts, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	h = s.withCORS(h)
	h = s.withRateLimit(h)
	h = withRequestID(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Overlay session endpoints
	s.mux.HandleFunc("GET /api/public/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.mux.HandleFunc("POST /api/public/heartbeat", s.handleHeartbeat)
	s.mux.HandleFunc("GET /api/public/{token}", s.handleResolve)

	// Storefront, no auth
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/admin/login", s.handleAdminLogin)
	s.mux.HandleFunc("GET /api/layouts", s.handlePublicLayouts)
	s.mux.HandleFunc("GET /api/products", s.handlePublicProducts)
	s.mux.HandleFunc("GET /api/products/{id}", s.handlePublicProduct)
	s.mux.HandleFunc("POST /api/coupons/check", s.handleCouponCheck)
	s.mux.HandleFunc("POST /api/support", s.handleSupportSubmit)
	s.mux.HandleFunc("GET /api/settings/registration-status", s.handleRegistrationStatus)

	// Authenticated user
	s.mux.HandleFunc("GET /api/user/profile", s.requireUser(s.handleProfile))
	s.mux.HandleFunc("POST /api/user/purchase", s.requireUser(s.handlePurchase))
	s.mux.HandleFunc("PUT /api/user/theme-config", s.requireUser(s.handleSaveThemeConfig))
	s.mux.HandleFunc("POST /api/payment/create-order", s.requireUser(s.handleCreateOrder))
	s.mux.HandleFunc("POST /api/payment/verify", s.requireUser(s.handleVerifyPayment))

	// Admin console
	s.mux.HandleFunc("GET /api/admin/stats", s.requireAdmin(s.handleAdminStats))
	s.mux.HandleFunc("GET /api/admin/users", s.requireAdmin(s.handleAdminListUsers))
	s.mux.HandleFunc("POST /api/admin/users", s.requireAdmin(s.handleAdminCreateUser))
	s.mux.HandleFunc("DELETE /api/admin/users/{id}", s.requireAdmin(s.handleAdminDeleteUser))
	s.mux.HandleFunc("PUT /api/admin/users/{id}/password", s.requireAdmin(s.handleAdminSetPassword))
	s.mux.HandleFunc("PUT /api/admin/users/{id}/status", s.requireAdmin(s.handleAdminSetStatus))
	s.mux.HandleFunc("GET /api/admin/users/{id}/subscriptions", s.requireAdmin(s.handleAdminUserSubs))
	s.mux.HandleFunc("POST /api/admin/users/{id}/subscriptions", s.requireAdmin(s.handleAdminGrantSub))
	s.mux.HandleFunc("PUT /api/admin/users/{id}/subscriptions/{subID}/extend", s.requireAdmin(s.handleAdminExtendSub))
	s.mux.HandleFunc("GET /api/admin/transactions", s.requireAdmin(s.handleAdminTransactions))
	s.mux.HandleFunc("GET /api/admin/layouts", s.requireAdmin(s.handleAdminLayouts))
	s.mux.HandleFunc("POST /api/admin/layouts", s.requireAdmin(s.handleAdminCreateLayout))
	s.mux.HandleFunc("PUT /api/admin/layouts/{id}", s.requireAdmin(s.handleAdminUpdateLayout))
	s.mux.HandleFunc("GET /api/admin/products", s.requireAdmin(s.handleAdminProducts))
	s.mux.HandleFunc("POST /api/admin/products", s.requireAdmin(s.handleAdminCreateProduct))
	s.mux.HandleFunc("PUT /api/admin/products/{id}", s.requireAdmin(s.handleAdminUpdateProduct))
	s.mux.HandleFunc("DELETE /api/admin/products/{id}", s.requireAdmin(s.handleAdminDeleteProduct))
	s.mux.HandleFunc("GET /api/admin/coupons", s.requireAdmin(s.handleAdminCoupons))
	s.mux.HandleFunc("POST /api/admin/coupons", s.requireAdmin(s.handleAdminCreateCoupon))
	s.mux.HandleFunc("DELETE /api/admin/coupons/{code}", s.requireAdmin(s.handleAdminDeleteCoupon))
	s.mux.HandleFunc("GET /api/admin/support", s.requireAdmin(s.handleAdminSupport))
	s.mux.HandleFunc("PUT /api/admin/support/{id}/status", s.requireAdmin(s.handleAdminSupportStatus))
	s.mux.HandleFunc("DELETE /api/admin/support/{id}", s.requireAdmin(s.handleAdminSupportDelete))
	s.mux.HandleFunc("GET /api/admin/settings/registration", s.requireAdmin(s.handleAdminGetRegistration))
	s.mux.HandleFunc("PUT /api/admin/settings/registration", s.requireAdmin(s.handleAdminSetRegistration))
}

// --- helpers ---

func readJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("missing body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceErr maps model sentinel errors onto client statuses;
// anything unrecognized is a 500.
func (s *Server) writeServiceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrTransactionNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrMissingFields),
		errors.Is(err, model.ErrPasswordTooShort),
		errors.Is(err, model.ErrEmailNotAllowed),
		errors.Is(err, model.ErrInvalidProducts),
		errors.Is(err, model.ErrNoFields):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrInvalidCredentials):
		writeErr(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, model.ErrAccountDeactivated),
		errors.Is(err, model.ErrRegistrationDisabled),
		errors.Is(err, model.ErrUserMismatch):
		writeErr(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrUserExists),
		errors.Is(err, model.ErrLayoutExists):
		writeErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidSignature):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		if s.logger != nil {
			s.logger.Error(map[string]interface{}{"op": "http", "error": err.Error()})
		}
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}
