package model

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAdminStatsAndUsers(t *testing.T) {
	db := newTestDB(t)
	admin := NewAdminService(db, nil)
	ctx := context.Background()
	now := time.Now()

	uid, err := admin.CreateUser(ctx, CreateUserRequest{
		Name: "Managed", Email: "managed@example.com", Password: "longenough", Now: now,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	seedPricedLayout(t, db, "neon", 100, 100, 0, 0, 0)
	if _, err := db.Exec(`
INSERT INTO subscriptions (user_id, layout_id, start_ns, expiry_ns, price_paid, public_token)
VALUES (?, 'neon', ?, ?, 100, 'tok-admin');
`, uid, now.UnixNano(), now.Add(time.Hour).UnixNano()); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	if _, err := db.Exec(`
INSERT INTO transactions (order_id, user_id, amount, status, created_at_ns)
VALUES ('ORD_1', ?, 100, 'SUCCESS', ?), ('ORD_2', ?, 50, 'PENDING', ?);
`, uid, now.UnixNano(), uid, now.UnixNano()); err != nil {
		t.Fatalf("seed transactions: %v", err)
	}

	stats, err := admin.Stats(ctx, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalUsers != 1 || stats.ActiveSubs != 1 || stats.TotalRevenue != 100 {
		t.Fatalf("stats: %+v", stats)
	}
	if len(stats.RecentUsers) != 1 {
		t.Fatalf("recent users: %+v", stats.RecentUsers)
	}

	users, err := admin.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 || users[0].PurchaseCount != 1 || users[0].TotalSpent != 100 {
		t.Fatalf("users: %+v", users)
	}

	txs, err := admin.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("transactions: %+v", txs)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	db := newTestDB(t)
	admin := NewAdminService(db, nil)
	ctx := context.Background()
	now := time.Now()

	uid, err := admin.CreateUser(ctx, CreateUserRequest{
		Name: "Doomed", Email: "doomed@example.com", Password: "longenough", Now: now,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	seedPricedLayout(t, db, "neon", 100, 100, 0, 0, 0)
	if _, err := db.Exec(`
INSERT INTO subscriptions (user_id, layout_id, start_ns, expiry_ns, price_paid, public_token)
VALUES (?, 'neon', ?, ?, 100, 'tok-doomed');
`, uid, now.UnixNano(), now.Add(time.Hour).UnixNano()); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	if err := admin.DeleteUser(ctx, uid); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM subscriptions WHERE user_id = ?;`, uid).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("subscriptions left behind: %d", n)
	}

	if err := admin.DeleteUser(ctx, uid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestSupportQueue(t *testing.T) {
	db := newTestDB(t)
	sup := NewSupportService(db, nil)
	ctx := context.Background()

	id, err := sup.Submit(ctx, SupportRequest{
		Name: "Viewer", Email: "v@example.com", Subject: "Overlay stuck", Message: "It says locked",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	qs, err := sup.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(qs) != 1 || qs[0].Status != "OPEN" {
		t.Fatalf("queue: %+v", qs)
	}

	if err := sup.SetStatus(ctx, id, "RESOLVED"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := sup.SetStatus(ctx, id, "BOGUS"); err == nil {
		t.Fatal("bogus status accepted")
	}
	if err := sup.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := sup.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}
