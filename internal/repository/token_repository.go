package repository

import (
	"context"
	"database/sql"
	"time"
)

const (
	insertRefresh = "INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)"
	revokeByHash  = "UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL"
)

// TokenRepo stores refresh tokens by SHA-256 hash; raw tokens never reach
// the database.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx, insertRefresh, userID, tokenHash, exp.UTC())
	return err
}

// ValidateRefresh returns the owner of a live token.  Revoked, expired and
// unknown hashes all yield sql.ErrNoRows.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var userID uint64
	err := r.DB.QueryRowContext(ctx,
		`SELECT user_id FROM refresh_tokens
		 WHERE token_hash=? AND revoked_at IS NULL AND expires_at > ? LIMIT 1`,
		tokenHash, time.Now().UTC()).Scan(&userID)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// Rotate swaps oldHash for newHash atomically.  A token that was already
// rotated or revoked yields sql.ErrNoRows and nothing is inserted.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash string, userID uint64, newHash string, exp time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := affectedOne(tx.ExecContext(ctx, revokeByHash, time.Now().UTC(), oldHash))
	if err != nil {
		return err
	}
	if !ok {
		return sql.ErrNoRows
	}
	if _, err := tx.ExecContext(ctx, insertRefresh, userID, newHash, exp.UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx, revokeByHash, time.Now().UTC(), tokenHash)
	return err
}

// RevokeAllForUser ends every session of userID (logout everywhere).
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		time.Now().UTC(), userID)
	return err
}

// PurgeExpired deletes tokens that expired or were revoked before cutoff and
// reports how many rows went.
func (r *TokenRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)",
		cutoff.UTC(), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
