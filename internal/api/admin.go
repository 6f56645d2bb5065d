package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/orbiodesigns/themestore/internal/model"
)

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Admin.Stats(r.Context(), time.Time{})
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Admin.ListUsers(r.Context())
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type adminCreateUserReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Age      int    `json:"age"`
}

func (s *Server) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req adminCreateUserReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.svc.Admin.CreateUser(r.Context(), model.CreateUserRequest{
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
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := s.svc.Admin.DeleteUser(r.Context(), id); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAdminSetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Admin.UpdateUserPassword(r.Context(), id, req.Password); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAdminSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		IsActive bool `json:"isActive"`
	}
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Admin.SetUserStatus(r.Context(), id, req.IsActive); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAdminUserSubs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid user id")
		return
	}
	subs, err := s.svc.Purchases.UserSubscriptions(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleAdminGrantSub(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		LayoutID string `json:"layoutId"`
		Months   int    `json:"months"`
	}
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Purchases.GrantSubscription(r.Context(), id, req.LayoutID, req.Months, time.Time{}); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (s *Server) handleAdminExtendSub(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid user id")
		return
	}
	subID, ok := pathID(r, "subID")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid subscription id")
		return
	}
	var req struct {
		Months int `json:"months"`
	}
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Purchases.ExtendSubscription(r.Context(), userID, subID, req.Months); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAdminTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.Admin.ListTransactions(r.Context())
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// --- catalog management ---

func (s *Server) handleAdminLayouts(w http.ResponseWriter, r *http.Request) {
	layouts, err := s.svc.Catalog.ListLayouts(r.Context())
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, layouts)
}

func (s *Server) handleAdminCreateLayout(w http.ResponseWriter, r *http.Request) {
	var l model.Layout
	if err := readJSON(r, &l); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Catalog.CreateLayout(r.Context(), l); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (s *Server) handleAdminUpdateLayout(w http.ResponseWriter, r *http.Request) {
	var upd model.LayoutUpdate
	if err := readJSON(r, &upd); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Catalog.UpdateLayout(r.Context(), r.PathValue("id"), upd); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAdminProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.svc.Catalog.ListProducts(r.Context())
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleAdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p model.Product
	if err := readJSON(r, &p); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.svc.Catalog.CreateProduct(r.Context(), p, time.Time{})
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleAdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var upd model.ProductUpdate
	if err := readJSON(r, &upd); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Catalog.UpdateProduct(r.Context(), id, upd); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := s.svc.Catalog.DeleteProduct(r.Context(), id); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- coupons ---

func (s *Server) handleAdminCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := s.svc.Coupons.List(r.Context())
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coupons)
}

func (s *Server) handleAdminCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var c model.Coupon
	if err := readJSON(r, &c); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Coupons.Create(r.Context(), c, time.Time{}); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (s *Server) handleAdminDeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Coupons.Delete(r.Context(), r.PathValue("code")); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- support / settings ---

func (s *Server) handleAdminSupport(w http.ResponseWriter, r *http.Request) {
	qs, err := s.svc.Support.List(r.Context())
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (s *Server) handleAdminSupportStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid query id")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Support.SetStatus(r.Context(), id, req.Status); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAdminSupportDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid query id")
		return
	}
	if err := s.svc.Support.Delete(r.Context(), id); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAdminGetRegistration(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.svc.Admin.RegistrationEnabled(r.Context())
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"registrationEnabled": enabled})
}

func (s *Server) handleAdminSetRegistration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Admin.SetRegistrationEnabled(r.Context(), req.Enabled, time.Time{}); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
