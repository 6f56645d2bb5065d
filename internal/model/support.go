package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/orbiodesigns/themestore/internal/obs"
)

// SupportService stores contact-form submissions for the admin queue.
type SupportService struct {
	db     *sql.DB
	logger *obs.Logger
}

func NewSupportService(db *sql.DB, logger *obs.Logger) *SupportService {
	return &SupportService{db: db, logger: logger}
}

type SupportRequest struct {
	Name    string
	Email   string
	Subject string
	Message string
	Now     time.Time
}

func (s *SupportService) Submit(ctx context.Context, req SupportRequest) (int64, error) {
	if req.Email == "" || req.Message == "" {
		return 0, ErrMissingFields
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO support_queries (name, email, subject, message, status, created_at_ns)
VALUES (?, ?, ?, ?, 'OPEN', ?);
`, req.Name, req.Email, req.Subject, req.Message, nowOr(req.Now).UnixNano())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if s.logger != nil {
		s.logger.Info(map[string]interface{}{"op": "support_submit", "query_id": id})
	}
	return id, nil
}

func (s *SupportService) List(ctx context.Context) ([]SupportQuery, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, email, subject, message, status, created_at_ns
FROM support_queries ORDER BY created_at_ns DESC;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SupportQuery{}
	for rows.Next() {
		var (
			q         SupportQuery
			name      sql.NullString
			email     sql.NullString
			subject   sql.NullString
			message   sql.NullString
			createdNs int64
		)
		if err := rows.Scan(&q.ID, &name, &email, &subject, &message, &q.Status, &createdNs); err != nil {
			return nil, err
		}
		q.Name = name.String
		q.Email = email.String
		q.Subject = subject.String
		q.Message = message.String
		q.CreatedAt = time.Unix(0, createdNs).UTC()
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SupportService) SetStatus(ctx context.Context, id int64, status string) error {
	if status != "OPEN" && status != "RESOLVED" {
		return ErrMissingFields
	}
	res, err := s.db.ExecContext(ctx, `UPDATE support_queries SET status = ? WHERE id = ?;`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SupportService) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM support_queries WHERE id = ?;`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
