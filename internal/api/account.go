package api

import (
	"encoding/json"
	"net/http"

	"github.com/orbiodesigns/themestore/internal/model"
)

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	profile, err := s.svc.Payments.Profile(r.Context(), claims.UserID)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type purchaseReq struct {
	LayoutID      string  `json:"layoutId"`
	DurationLabel string  `json:"durationLabel"`
	Months        int     `json:"months"`
	Price         float64 `json:"price"`
}

// handlePurchase records a direct (already-settled) purchase. The paid
// checkout path goes through /api/payment instead.
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	claims := claimsFrom(r)
	p, err := s.svc.Purchases.Purchase(r.Context(), model.PurchaseRequest{
		UserID:        claims.UserID,
		LayoutID:      req.LayoutID,
		DurationLabel: req.DurationLabel,
		Months:        req.Months,
		Price:         req.Price,
	})
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type themeConfigReq struct {
	LayoutID string          `json:"layoutId"`
	Config   json.RawMessage `json:"config"`
}

func (s *Server) handleSaveThemeConfig(w http.ResponseWriter, r *http.Request) {
	var req themeConfigReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	claims := claimsFrom(r)
	if err := s.svc.Purchases.SaveThemeConfig(r.Context(), claims.UserID, req.LayoutID, req.Config); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type createOrderReq struct {
	LayoutID   string  `json:"layoutId"`
	Months     int     `json:"months"`
	CouponCode string  `json:"couponCode"`
	ProductIDs []int64 `json:"productIds"`
	Phone      string  `json:"phone"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	claims := claimsFrom(r)
	res, err := s.svc.Payments.CreateOrder(r.Context(), model.OrderRequest{
		UserID:     claims.UserID,
		Email:      claims.Email,
		Phone:      req.Phone,
		LayoutID:   req.LayoutID,
		Months:     req.Months,
		CouponCode: req.CouponCode,
		ProductIDs: req.ProductIDs,
	})
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type verifyPaymentReq struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.svc.Payments.VerifyPayment(r.Context(), model.VerifyRequest{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": res.Status,
		"user":   res.User,
	})
}
