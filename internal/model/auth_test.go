package model

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newAuth(t *testing.T) (*AuthService, *AdminService) {
	t.Helper()
	db := newTestDB(t)
	return NewAuthService(db, nil, []byte("test-secret")), NewAdminService(db, nil)
}

func TestRegisterAndLogin(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	profile, err := auth.Register(ctx, RegisterRequest{
		Name:     "Streamer",
		Email:    "streamer@gmail.com",
		Password: "longenough",
		Phone:    "9999999999",
		Age:      25,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if profile.ID == "" || profile.Email != "streamer@gmail.com" {
		t.Fatalf("profile: %+v", profile)
	}
	if profile.Purchases == nil || profile.ProductPurchases == nil {
		t.Fatal("new profile must carry empty, non-nil purchase lists")
	}

	got, err := auth.Login(ctx, "streamer@gmail.com", "longenough")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.Name != "Streamer" || got.Phone != "9999999999" {
		t.Fatalf("login profile: %+v", got)
	}

	if _, err := auth.Login(ctx, "streamer@gmail.com", "wrongpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := auth.Login(ctx, "nobody@gmail.com", "longenough"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"missing fields", RegisterRequest{Name: "X"}, ErrMissingFields},
		{"non gmail", RegisterRequest{Email: "x@outlook.com", Password: "longenough"}, ErrEmailNotAllowed},
		{"short password", RegisterRequest{Email: "x@gmail.com", Password: "short"}, ErrPasswordTooShort},
	}
	for _, tc := range cases {
		if _, err := auth.Register(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}

	if _, err := auth.Register(ctx, RegisterRequest{Email: "dup@gmail.com", Password: "longenough"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := auth.Register(ctx, RegisterRequest{Email: "dup@gmail.com", Password: "longenough"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate err = %v", err)
	}
}

func TestRegisterRespectsToggle(t *testing.T) {
	auth, admin := newAuth(t)
	ctx := context.Background()

	if err := admin.SetRegistrationEnabled(ctx, false, time.Now()); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := auth.Register(ctx, RegisterRequest{Email: "late@gmail.com", Password: "longenough"}); !errors.Is(err, ErrRegistrationDisabled) {
		t.Fatalf("err = %v, want ErrRegistrationDisabled", err)
	}

	if err := admin.SetRegistrationEnabled(ctx, true, time.Now()); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := auth.Register(ctx, RegisterRequest{Email: "late@gmail.com", Password: "longenough"}); err != nil {
		t.Fatalf("register after re-enable: %v", err)
	}
}

func TestLoginDeactivatedAccount(t *testing.T) {
	auth, admin := newAuth(t)
	ctx := context.Background()

	profile, err := auth.Register(ctx, RegisterRequest{Email: "frozen@gmail.com", Password: "longenough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	userID, err := strconv.ParseInt(profile.ID, 10, 64)
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}
	if err := admin.SetUserStatus(ctx, userID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := auth.Login(ctx, "frozen@gmail.com", "longenough"); !errors.Is(err, ErrAccountDeactivated) {
		t.Fatalf("err = %v, want ErrAccountDeactivated", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	auth, _ := newAuth(t)
	now := time.Now()

	tok, err := auth.IssueUserToken(42, "u@gmail.com", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := auth.ParseToken(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "u@gmail.com" || claims.Role != "" {
		t.Fatalf("claims: %+v", claims)
	}

	admTok, err := auth.IssueAdminToken(7, now)
	if err != nil {
		t.Fatalf("issue admin: %v", err)
	}
	adm, err := auth.ParseToken(admTok)
	if err != nil {
		t.Fatalf("parse admin: %v", err)
	}
	if adm.Role != "admin" || adm.UserID != 7 {
		t.Fatalf("admin claims: %+v", adm)
	}

	if _, err := auth.ParseToken(tok + "tampered"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("tampered token err = %v", err)
	}
}

func TestAdminLogin(t *testing.T) {
	db := newTestDB(t)
	auth := NewAuthService(db, nil, []byte("test-secret"))
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("adminpass"), bcryptCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO admins (username, password_hash) VALUES ('root', ?);`, string(hash)); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	id, err := auth.AdminLogin(ctx, "root", "adminpass")
	if err != nil || id == 0 {
		t.Fatalf("admin login: id=%d err=%v", id, err)
	}
	if _, err := auth.AdminLogin(ctx, "root", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password err = %v", err)
	}
}
