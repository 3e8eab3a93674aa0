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

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db *store.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *store.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Insert stores a new session.
func (r *SessionRepository) Insert(ctx context.Context, session *auth.Session) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`,
		session.TokenHash,
		session.UserID.String(),
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return oops.Code("SESSION_INSERT_FAILED").
			With("operation", "insert session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT token_hash, user_id, created_at, expires_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)

	var (
		session   auth.Session
		userIDStr string
		createdAt time.Time
		expiresAt time.Time
	)
	err := row.Scan(&session.TokenHash, &userIDStr, &createdAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").
			With("operation", "parse session user id").
			With("user_id", userIDStr).
			Wrap(err)
	}
	session.UserID = userID
	session.CreatedAt = createdAt
	session.ExpiresAt = expiresAt
	return &session, nil
}

// Delete removes one session by token hash.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	result, err := r.db.Querier(ctx).Exec(ctx, `
		DELETE FROM sessions WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUser removes all sessions for a user, keeping the one with
// exceptTokenHash when non-empty. No rows deleted is a valid state.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID ulid.ULID, exceptTokenHash string) error {
	var err error
	if exceptTokenHash == "" {
		_, err = r.db.Querier(ctx).Exec(ctx, `
			DELETE FROM sessions WHERE user_id = $1
		`, userID.String())
	} else {
		_, err = r.db.Querier(ctx).Exec(ctx, `
			DELETE FROM sessions WHERE user_id = $1 AND token_hash <> $2
		`, userID.String(), exceptTokenHash)
	}
	if err != nil {
		return oops.Code("SESSION_DELETE_BY_USER_FAILED").
			With("operation", "delete sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Querier(ctx).Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
