package storage

import (
	"context"
	"database/sql"
	"fmt"
)

func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_ns INTEGER NOT NULL
);
`); err != nil {
		return err
	}

	const latest = 2

	cur, err := currentVersion(ctx, d.DB)
	if err != nil {
		return err
	}
	for v := cur + 1; v <= latest; v++ {
		if err := apply(ctx, d.DB, v); err != nil {
			return err
		}
	}
	return nil
}

func currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations;`).Scan(&v); err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

func apply(ctx context.Context, db *sql.DB, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	switch version {
	case 1:
		if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS settings (
  key_name TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at_ns INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  full_name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  phone_number TEXT,
  age INTEGER,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at_ns INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS admins (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS layouts (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  base_price REAL NOT NULL DEFAULT 0,
  price_1mo REAL NOT NULL DEFAULT 0,
  price_3mo REAL NOT NULL DEFAULT 0,
  price_6mo REAL NOT NULL DEFAULT 0,
  price_1yr REAL NOT NULL DEFAULT 0,
  thumbnail_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  description TEXT,
  price REAL NOT NULL DEFAULT 0,
  file_url TEXT NOT NULL,
  file_type TEXT,
  thumbnail_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at_ns INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS coupons (
  code TEXT PRIMARY KEY,
  discount_type TEXT NOT NULL,
  discount_value REAL NOT NULL,
  description TEXT,
  layout_id TEXT,
  expiry_ns INTEGER,
  usage_limit INTEGER,
  usage_count INTEGER NOT NULL DEFAULT 0,
  created_at_ns INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  layout_id TEXT NOT NULL,
  start_ns INTEGER NOT NULL,
  expiry_ns INTEGER NOT NULL,
  price_paid REAL NOT NULL DEFAULT 0,
  public_token TEXT NOT NULL UNIQUE,
  saved_theme_config TEXT,
  order_id TEXT,
  payment_method TEXT
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions(user_id);

CREATE TABLE IF NOT EXISTS transactions (
  order_id TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL,
  layout_id TEXT,
  amount REAL NOT NULL,
  status TEXT NOT NULL,
  payment_session_id TEXT,
  metadata TEXT,
  created_at_ns INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_session ON transactions(payment_session_id);

CREATE TABLE IF NOT EXISTS product_purchases (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  product_id INTEGER NOT NULL,
  price_paid REAL NOT NULL,
  order_id TEXT,
  purchased_at_ns INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS support_queries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT,
  email TEXT,
  subject TEXT,
  message TEXT,
  status TEXT NOT NULL DEFAULT 'OPEN',
  created_at_ns INTEGER NOT NULL
);

INSERT OR IGNORE INTO settings (key_name, value, updated_at_ns)
VALUES ('registration_enabled', 'true', 0);
`); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}

	case 2:
		// Overlay session lock state, embedded in the subscription row.
		// Both columns stay NULL until the first viewer resolves the
		// public token.
		if _, err := tx.ExecContext(ctx, `
ALTER TABLE subscriptions ADD COLUMN active_session_id TEXT;
`); err != nil {
			return fmt.Errorf("migration v2 failed: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
ALTER TABLE subscriptions ADD COLUMN last_heartbeat_ns INTEGER;
`); err != nil {
			return fmt.Errorf("migration v2 failed: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_subscriptions_heartbeat ON subscriptions(last_heartbeat_ns);
`); err != nil {
			return fmt.Errorf("migration v2 failed: %w", err)
		}

	default:
		return fmt.Errorf("unknown migration version: %d", version)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at_ns) VALUES(?, strftime('%s','now')*1000000000);`, version); err != nil {
		return err
	}
	return tx.Commit()
}
