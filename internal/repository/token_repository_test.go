package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

const testTokenSchema = `
CREATE TABLE refresh_tokens (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	token_hash TEXT NOT NULL UNIQUE,
	expires_at DATETIME NOT NULL,
	revoked_at DATETIME NULL
);`

func newTestTokenRepo(t *testing.T) *TokenRepo {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "tokens.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(testTokenSchema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return NewTokenRepo(db)
}

func TestTokenRepoRotateOnce(t *testing.T) {
	repo := newTestTokenRepo(t)
	ctx := context.Background()
	exp := time.Now().Add(24 * time.Hour)

	if err := repo.StoreRefresh(ctx, 7, "old", exp); err != nil {
		t.Fatalf("store: %v", err)
	}
	if uid, err := repo.ValidateRefresh(ctx, "old"); err != nil || uid != 7 {
		t.Fatalf("validate = %d, %v", uid, err)
	}
	if err := repo.Rotate(ctx, "old", 7, "new", exp); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := repo.ValidateRefresh(ctx, "old"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("rotated token still valid: %v", err)
	}
	if err := repo.Rotate(ctx, "old", 7, "again", exp); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("second rotate = %v, want ErrNoRows", err)
	}
	if _, err := repo.ValidateRefresh(ctx, "again"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("failed rotate inserted a token: %v", err)
	}
	if uid, err := repo.ValidateRefresh(ctx, "new"); err != nil || uid != 7 {
		t.Fatalf("new token = %d, %v", uid, err)
	}
}

func TestTokenRepoExpiryAndPurge(t *testing.T) {
	repo := newTestTokenRepo(t)
	ctx := context.Background()
	now := time.Now()

	if err := repo.StoreRefresh(ctx, 1, "stale", now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := repo.StoreRefresh(ctx, 1, "live", now.Add(2*time.Hour)); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := repo.ValidateRefresh(ctx, "stale"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expired token valid: %v", err)
	}
	n, err := repo.PurgeExpired(ctx, now.Add(-time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v", n, err)
	}
	if err := repo.RevokeAllForUser(ctx, 1); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if _, err := repo.ValidateRefresh(ctx, "live"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("revoked token valid: %v", err)
	}
}
