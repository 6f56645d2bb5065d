package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/orbiodesigns/themestore/internal/model"
)

type contextKey string

const (
	requestIDKey contextKey = "req_id"
	claimsKey    contextKey = "claims"
)

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withRateLimit is a single global token bucket. Per-client buckets are
// not worth the bookkeeping at this traffic level; the original server
// used one shared window too.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.opts.RatePerSec <= 0 {
		return next
	}
	burst := s.opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(s.opts.RatePerSec), burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !lim.Allow() {
			writeErr(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	origin := s.opts.ClientURL
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireUser(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.bearerClaims(r)
		if !ok {
			writeErr(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		h(w, r.WithContext(ctx))
	}
}

func (s *Server) requireAdmin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.bearerClaims(r)
		if !ok {
			writeErr(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		if claims.Role != "admin" {
			writeErr(w, http.StatusForbidden, "admin access required")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		h(w, r.WithContext(ctx))
	}
}

func (s *Server) bearerClaims(r *http.Request) (model.Claims, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return model.Claims{}, false
	}
	claims, err := s.svc.Auth.ParseToken(strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return model.Claims{}, false
	}
	return claims, true
}

func claimsFrom(r *http.Request) model.Claims {
	c, _ := r.Context().Value(claimsKey).(model.Claims)
	return c
}
