package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/orbiodesigns/themestore/internal/obs"
)

const (
	bcryptCost     = 10
	passwordMinLen = 8
)

type AuthService struct {
	db        *sql.DB
	logger    *obs.Logger
	jwtSecret []byte
}

func NewAuthService(db *sql.DB, logger *obs.Logger, jwtSecret []byte) *AuthService {
	return &AuthService{db: db, logger: logger, jwtSecret: jwtSecret}
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Age      int
	Now      time.Time
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (UserProfile, error) {
	// Registration can be switched off from the admin console. A
	// failed settings read does not block registration.
	var setting string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key_name = 'registration_enabled';`).Scan(&setting)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		if s.logger != nil {
			s.logger.Warn(map[string]interface{}{"op": "register", "settings_err": err.Error()})
		}
	} else if setting == "false" {
		return UserProfile{}, ErrRegistrationDisabled
	}

	if req.Email == "" || req.Password == "" {
		return UserProfile{}, ErrMissingFields
	}
	if !strings.HasSuffix(strings.ToLower(req.Email), "@gmail.com") {
		return UserProfile{}, ErrEmailNotAllowed
	}
	if len(req.Password) < passwordMinLen {
		return UserProfile{}, ErrPasswordTooShort
	}

	var existing int64
	err = s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?;`, req.Email).Scan(&existing)
	if err == nil {
		return UserProfile{}, ErrUserExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return UserProfile{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return UserProfile{}, err
	}

	now := nowOr(req.Now)
	res, err := s.db.ExecContext(ctx, `
INSERT INTO users (full_name, email, password_hash, phone_number, age, created_at_ns)
VALUES (?, ?, ?, ?, ?, ?);
`, req.Name, req.Email, string(hash), req.Phone, req.Age, now.UnixNano())
	if err != nil {
		if isSQLiteConstraint(err) {
			return UserProfile{}, ErrUserExists
		}
		return UserProfile{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return UserProfile{}, err
	}

	if s.logger != nil {
		s.logger.Info(map[string]interface{}{"op": "register", "user_id": id, "email": req.Email})
	}

	return UserProfile{
		ID:               strconv.FormatInt(id, 10),
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		Age:              req.Age,
		Purchases:        []Purchase{},
		ProductPurchases: []ProductPurchase{},
	}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (UserProfile, error) {
	if email == "" || password == "" {
		return UserProfile{}, ErrInvalidCredentials
	}

	var (
		id       int64
		fullName string
		hash     string
		phone    sql.NullString
		age      sql.NullInt64
		isActive bool
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, full_name, password_hash, phone_number, age, is_active
FROM users WHERE email = ?;
`, email).Scan(&id, &fullName, &hash, &phone, &age, &isActive)
	if errors.Is(err, sql.ErrNoRows) {
		return UserProfile{}, ErrInvalidCredentials
	}
	if err != nil {
		return UserProfile{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return UserProfile{}, ErrInvalidCredentials
	}
	if !isActive {
		return UserProfile{}, ErrAccountDeactivated
	}

	purchases, err := loadPurchases(ctx, s.db, id)
	if err != nil {
		return UserProfile{}, err
	}
	productPurchases, err := loadProductPurchases(ctx, s.db, id)
	if err != nil {
		return UserProfile{}, err
	}

	return UserProfile{
		ID:               strconv.FormatInt(id, 10),
		Name:             fullName,
		Email:            email,
		Phone:            phone.String,
		Age:              int(age.Int64),
		Purchases:        purchases,
		ProductPurchases: productPurchases,
	}, nil
}

// AdminLogin checks admin credentials and returns the admin's id.
func (s *AuthService) AdminLogin(ctx context.Context, username, password string) (int64, error) {
	var (
		id   int64
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM admins WHERE username = ?;`, username).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInvalidCredentials
	}
	if err != nil {
		return 0, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return 0, ErrInvalidCredentials
	}
	return id, nil
}

// Claims is what the API layer gets back from a verified bearer token.
type Claims struct {
	UserID int64
	Email  string
	Role   string
}

func (s *AuthService) IssueUserToken(userID int64, email string, now time.Time) (string, error) {
	now = nowOr(now)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    strconv.FormatInt(userID, 10),
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
	})
	return tok.SignedString(s.jwtSecret)
}

func (s *AuthService) IssueAdminToken(adminID int64, now time.Time) (string, error) {
	now = nowOr(now)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   strconv.FormatInt(adminID, 10),
		"role": "admin",
		"iat":  now.Unix(),
		"exp":  now.Add(12 * time.Hour).Unix(),
	})
	return tok.SignedString(s.jwtSecret)
}

func (s *AuthService) ParseToken(raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidCredentials
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidCredentials
	}

	var c Claims
	if v, ok := mc["id"].(string); ok {
		c.UserID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := mc["email"].(string); ok {
		c.Email = v
	}
	if v, ok := mc["role"].(string); ok {
		c.Role = v
	}
	if c.UserID == 0 {
		return Claims{}, ErrInvalidCredentials
	}
	return c, nil
}
