// Package model holds the storefront services. Every service is a
// thin struct over *sql.DB in the same shape: validate, run SQL,
// translate outcomes into typed results or sentinel errors the API
// layer maps onto status codes.
package model

import (
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrMissingFields        = errors.New("missing fields")
	ErrRegistrationDisabled = errors.New("new user registration is currently disabled")
	ErrEmailNotAllowed      = errors.New("registration restricted: only @gmail.com accounts are allowed")
	ErrPasswordTooShort     = errors.New("password must be at least 8 characters long")
	ErrUserExists           = errors.New("user already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountDeactivated   = errors.New("account deactivated, please contact support")
	ErrUserMismatch         = errors.New("user id mismatch")
	ErrLayoutExists         = errors.New("layout id already exists")
	ErrNoFields             = errors.New("no fields to update")
	ErrInvalidProducts      = errors.New("some products are invalid or inactive")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrTransactionNotFound  = errors.New("transaction not found or mismatch")
)

func isSQLiteBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

func isSQLiteConstraint(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}

func nowOr(t time.Time) time.Time {
	if !t.IsZero() {
		return t
	}
	return time.Now()
}

// placeholders returns "?, ?, ..., ?" for n bind parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
