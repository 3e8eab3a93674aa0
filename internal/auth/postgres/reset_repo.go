// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/wildboar/accountd/internal/auth"
	"github.com/wildboar/accountd/internal/store"
)

// ResetRepository implements auth.ResetRepository using PostgreSQL.
type ResetRepository struct {
	db *store.DB
}

// NewResetRepository creates a new ResetRepository.
func NewResetRepository(db *store.DB) *ResetRepository {
	return &ResetRepository{db: db}
}

// Insert stores a new password-reset session.
func (r *ResetRepository) Insert(ctx context.Context, reset *auth.PasswordResetSession) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO password_reset_sessions (token_hash, user_id, created_at, expires_at, is_used)
		VALUES ($1, $2, $3, $4, $5)
	`,
		reset.TokenHash,
		reset.UserID.String(),
		reset.CreatedAt,
		reset.ExpiresAt,
		reset.IsUsed,
	)
	if err != nil {
		return oops.Code("RESET_INSERT_FAILED").
			With("operation", "insert reset session").
			With("user_id", reset.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a reset session by token hash.
func (r *ResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordResetSession, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT token_hash, user_id, created_at, expires_at, is_used
		FROM password_reset_sessions
		WHERE token_hash = $1
	`, tokenHash)

	var (
		reset     auth.PasswordResetSession
		userIDStr string
		createdAt time.Time
		expiresAt time.Time
	)
	err := row.Scan(&reset.TokenHash, &userIDStr, &createdAt, &expiresAt, &reset.IsUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_BY_TOKEN_FAILED").
			With("operation", "get reset session by token hash").
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_USER_ID").
			With("operation", "parse reset user id").
			With("user_id", userIDStr).
			Wrap(err)
	}
	reset.UserID = userID
	reset.CreatedAt = createdAt
	reset.ExpiresAt = expiresAt
	return &reset, nil
}

// MarkUsed consumes the capability. The is_used guard in the predicate
// makes consumption race-safe: of two concurrent submissions exactly
// one sees RowsAffected 1, the other gets ErrNotFound.
func (r *ResetRepository) MarkUsed(ctx context.Context, tokenHash string) error {
	result, err := r.db.Querier(ctx).Exec(ctx, `
		UPDATE password_reset_sessions SET is_used = TRUE
		WHERE token_hash = $1 AND is_used = FALSE
	`, tokenHash)
	if err != nil {
		return oops.Code("RESET_MARK_USED_FAILED").
			With("operation", "mark reset session used").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ auth.ResetRepository = (*ResetRepository)(nil)
