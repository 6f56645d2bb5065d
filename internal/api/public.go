package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/orbiodesigns/themestore/internal/model"
)

// --- overlay session endpoints ---

type resolveResp struct {
	LayoutID  string          `json:"layoutId,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
	IsExpired bool            `json:"isExpired"`
}

// handleResolve is the viewer's page-load entry point. The 409 body
// carries a human-readable message because the overlay page shows it
// verbatim.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeErr(w, http.StatusBadRequest, "sessionId query parameter required")
		return
	}

	res, err := s.svc.Public.Resolve(r.Context(), model.ResolveRequest{
		Token:     token,
		SessionID: sessionID,
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	switch {
	case !res.Found:
		writeErr(w, http.StatusNotFound, "overlay not found")
	case res.Expired:
		writeJSON(w, http.StatusOK, resolveResp{IsExpired: true})
	case !res.Granted:
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   "Session Active on another device",
			"message": "This overlay is currently open on another computer or browser tab. Close it there to view it here.",
		})
	default:
		writeJSON(w, http.StatusOK, resolveResp{
			LayoutID:  res.LayoutID,
			Config:    res.Config,
			IsExpired: false,
		})
	}
}

type heartbeatReq struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" || req.SessionID == "" {
		writeErr(w, http.StatusBadRequest, "token and sessionId required")
		return
	}

	res, err := s.svc.Public.Heartbeat(r.Context(), model.HeartbeatRequest{
		Token:     req.Token,
		SessionID: req.SessionID,
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if !res.Renewed {
		writeErr(w, http.StatusConflict, "Lock lost or stolen")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- auth ---

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Age      int    `json:"age"`
}

type authResp struct {
	Token string            `json:"token"`
	User  model.UserProfile `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := s.svc.Auth.Register(r.Context(), model.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Age:      req.Age,
	})
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	s.respondWithToken(w, http.StatusCreated, profile)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := s.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	s.respondWithToken(w, http.StatusOK, profile)
}

func (s *Server) respondWithToken(w http.ResponseWriter, status int, profile model.UserProfile) {
	userID, err := strconv.ParseInt(profile.ID, 10, 64)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	tok, err := s.svc.Auth.IssueUserToken(userID, profile.Email, time.Time{})
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, status, authResp{Token: tok, User: profile})
}

type adminLoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.svc.Auth.AdminLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	tok, err := s.svc.Auth.IssueAdminToken(id, time.Time{})
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

// --- catalog ---

func (s *Server) handlePublicLayouts(w http.ResponseWriter, r *http.Request) {
	layouts, err := s.svc.Catalog.ListPublicLayouts(r.Context())
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, layouts)
}

func (s *Server) handlePublicProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.svc.Catalog.ListPublicProducts(r.Context())
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handlePublicProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := s.svc.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- coupons / support / settings ---

type couponCheckReq struct {
	Code     string `json:"code"`
	LayoutID string `json:"layoutId"`
}

func (s *Server) handleCouponCheck(w http.ResponseWriter, r *http.Request) {
	var req couponCheckReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.svc.Coupons.Check(r.Context(), req.Code, req.LayoutID, time.Time{})
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type supportReq struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (s *Server) handleSupportSubmit(w http.ResponseWriter, r *http.Request) {
	var req supportReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.svc.Support.Submit(r.Context(), model.SupportRequest{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "id": id})
}

func (s *Server) handleRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.svc.Admin.RegistrationEnabled(r.Context())
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"registrationEnabled": enabled})
}
