package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/orbiodesigns/themestore/internal/obs"
)

// AdminService backs the admin console: dashboard stats, user
// management, the transaction ledger, and runtime settings.
type AdminService struct {
	db     *sql.DB
	logger *obs.Logger
}

func NewAdminService(db *sql.DB, logger *obs.Logger) *AdminService {
	return &AdminService{db: db, logger: logger}
}

func (s *AdminService) Stats(ctx context.Context, now time.Time) (AdminStats, error) {
	now = nowOr(now)
	var st AdminStats

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users;`).Scan(&st.TotalUsers); err != nil {
		return AdminStats{}, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE expiry_ns >= ?;`, now.UnixNano()).Scan(&st.ActiveSubs); err != nil {
		return AdminStats{}, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE status = 'SUCCESS';`).Scan(&st.TotalRevenue); err != nil {
		return AdminStats{}, err
	}

	recent, err := s.listUsers(ctx, 5)
	if err != nil {
		return AdminStats{}, err
	}
	st.RecentUsers = recent
	return st, nil
}

func (s *AdminService) ListUsers(ctx context.Context) ([]UserRecord, error) {
	return s.listUsers(ctx, 0)
}

func (s *AdminService) listUsers(ctx context.Context, limit int) ([]UserRecord, error) {
	q := `
SELECT u.id, u.full_name, u.email, u.phone_number, u.age, u.created_at_ns, u.is_active,
  (SELECT COUNT(*) FROM subscriptions s WHERE s.user_id = u.id),
  (SELECT COALESCE(SUM(t.amount), 0) FROM transactions t WHERE t.user_id = u.id AND t.status = 'SUCCESS')
FROM users u
ORDER BY u.created_at_ns DESC`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q+`;`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []UserRecord{}
	for rows.Next() {
		var (
			u         UserRecord
			phone     sql.NullString
			age       sql.NullInt64
			createdNs int64
			active    int
		)
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &phone, &age, &createdNs, &active,
			&u.PurchaseCount, &u.TotalSpent); err != nil {
			return nil, err
		}
		u.PhoneNumber = phone.String
		u.Age = int(age.Int64)
		u.CreatedAt = time.Unix(0, createdNs).UTC()
		u.IsActive = active != 0
		users = append(users, u)
	}
	return users, rows.Err()
}

type CreateUserRequest struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Age      int
	Now      time.Time
}

// CreateUser is the admin path; it skips the public registration
// gates (domain allowlist, registration toggle) on purpose.
func (s *AdminService) CreateUser(ctx context.Context, req CreateUserRequest) (int64, error) {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return 0, ErrMissingFields
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return 0, err
	}

	var phone, age interface{}
	if req.Phone != "" {
		phone = req.Phone
	}
	if req.Age > 0 {
		age = req.Age
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO users (full_name, email, password_hash, phone_number, age, created_at_ns)
VALUES (?, ?, ?, ?, ?, ?);
`, req.Name, req.Email, string(hash), phone, age, nowOr(req.Now).UnixNano())
	if isSQLiteConstraint(err) {
		return 0, ErrUserExists
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteUser removes the user along with their subscriptions and
// transactions, in one transaction.
func (s *AdminService) DeleteUser(ctx context.Context, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM subscriptions WHERE user_id = ?;`,
		`DELETE FROM product_purchases WHERE user_id = ?;`,
		`DELETE FROM transactions WHERE user_id = ?;`,
	} {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?;`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info(map[string]interface{}{"op": "delete_user", "user_id": userID})
	}
	return nil
}

func (s *AdminService) UpdateUserPassword(ctx context.Context, userID int64, password string) error {
	if len(password) < passwordMinLen {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?;`, string(hash), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *AdminService) SetUserStatus(ctx context.Context, userID int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_active = ? WHERE id = ?;`, boolToInt(active), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *AdminService) ListTransactions(ctx context.Context) ([]TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT t.order_id, t.amount, t.status, t.created_at_ns, u.full_name, u.email
FROM transactions t
LEFT JOIN users u ON u.id = t.user_id
ORDER BY t.created_at_ns DESC;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TransactionRecord{}
	for rows.Next() {
		var (
			t         TransactionRecord
			createdNs int64
			name      sql.NullString
			email     sql.NullString
		)
		if err := rows.Scan(&t.OrderID, &t.Amount, &t.Status, &createdNs, &name, &email); err != nil {
			return nil, err
		}
		t.CreatedAt = time.Unix(0, createdNs).UTC()
		t.UserName = name.String
		t.UserEmail = email.String
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *AdminService) RegistrationEnabled(ctx context.Context) (bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key_name = 'registration_enabled';`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return v != "false", nil
}

func (s *AdminService) SetRegistrationEnabled(ctx context.Context, enabled bool, now time.Time) error {
	v := "true"
	if !enabled {
		v = "false"
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings (key_name, value, updated_at_ns) VALUES ('registration_enabled', ?, ?)
ON CONFLICT(key_name) DO UPDATE SET value = excluded.value, updated_at_ns = excluded.updated_at_ns;
`, v, nowOr(now).UnixNano())
	return err
}
