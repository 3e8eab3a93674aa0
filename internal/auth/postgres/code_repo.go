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

// CodeRepository implements auth.CodeRepository using PostgreSQL.
type CodeRepository struct {
	db *store.DB
}

// NewCodeRepository creates a new CodeRepository.
func NewCodeRepository(db *store.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

const codeColumns = `id, user_id, purpose, code, created_at, expires_at, is_used, attempts`

// Insert stores a new code row.
func (r *CodeRepository) Insert(ctx context.Context, code *auth.VerificationCode) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO security_codes (id, user_id, purpose, code, created_at, expires_at, is_used, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		code.ID.String(),
		code.UserID.String(),
		string(code.Purpose),
		code.Code,
		code.CreatedAt,
		code.ExpiresAt,
		code.IsUsed,
		code.Attempts,
	)
	if err != nil {
		return oops.Code("CODE_INSERT_FAILED").
			With("operation", "insert security code").
			With("user_id", code.UserID.String()).
			With("purpose", string(code.Purpose)).
			Wrap(err)
	}
	return nil
}

// LatestActive returns the most recent unused, unexpired code for
// (user, purpose).
func (r *CodeRepository) LatestActive(ctx context.Context, userID ulid.ULID, purpose auth.Purpose) (*auth.VerificationCode, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT `+codeColumns+`
		FROM security_codes
		WHERE user_id = $1 AND purpose = $2 AND is_used = FALSE AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1
	`, userID.String(), string(purpose))

	code, err := scanCode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CODE_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CODE_LATEST_ACTIVE_FAILED").
			With("operation", "get latest active code").
			With("purpose", string(purpose)).
			Wrap(err)
	}
	return code, nil
}

// GetByValueForUpdate returns the most recent row for (user, purpose)
// with the given value, regardless of used or expired state, locking it
// for the transaction.
func (r *CodeRepository) GetByValueForUpdate(ctx context.Context, userID ulid.ULID, purpose auth.Purpose, value string) (*auth.VerificationCode, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT `+codeColumns+`
		FROM security_codes
		WHERE user_id = $1 AND purpose = $2 AND code = $3
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, userID.String(), string(purpose), value)

	code, err := scanCode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CODE_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CODE_GET_BY_VALUE_FAILED").
			With("operation", "get code by value").
			With("purpose", string(purpose)).
			Wrap(err)
	}
	return code, nil
}

// LatestUnusedForUpdate returns the most recent unused row for
// (user, purpose) irrespective of its value, locking it.
func (r *CodeRepository) LatestUnusedForUpdate(ctx context.Context, userID ulid.ULID, purpose auth.Purpose) (*auth.VerificationCode, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT `+codeColumns+`
		FROM security_codes
		WHERE user_id = $1 AND purpose = $2 AND is_used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, userID.String(), string(purpose))

	code, err := scanCode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CODE_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CODE_LATEST_UNUSED_FAILED").
			With("operation", "get latest unused code").
			With("purpose", string(purpose)).
			Wrap(err)
	}
	return code, nil
}

// Update persists the attempts counter and used flag. Rows are never
// deleted; the history is the audit trail.
func (r *CodeRepository) Update(ctx context.Context, code *auth.VerificationCode) error {
	result, err := r.db.Querier(ctx).Exec(ctx, `
		UPDATE security_codes SET is_used = $2, attempts = $3
		WHERE id = $1
	`, code.ID.String(), code.IsUsed, code.Attempts)
	if err != nil {
		return oops.Code("CODE_UPDATE_FAILED").
			With("operation", "update security code").
			With("code_id", code.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CODE_NOT_FOUND").
			With("code_id", code.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanCode scans a single row into a VerificationCode. Callers handle
// pgx.ErrNoRows.
func scanCode(row pgx.Row) (*auth.VerificationCode, error) {
	var (
		idStr     string
		userIDStr string
		purpose   string
		code      auth.VerificationCode
		createdAt time.Time
		expiresAt time.Time
	)

	err := row.Scan(&idStr, &userIDStr, &purpose, &code.Code, &createdAt, &expiresAt, &code.IsUsed, &code.Attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("CODE_SCAN_FAILED").
			With("operation", "scan security code").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("CODE_INVALID_ID").
			With("operation", "parse code id").
			With("id", idStr).
			Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("CODE_INVALID_USER_ID").
			With("operation", "parse code user id").
			With("user_id", userIDStr).
			Wrap(err)
	}

	code.ID = id
	code.UserID = userID
	code.Purpose = auth.Purpose(purpose)
	code.CreatedAt = createdAt
	code.ExpiresAt = expiresAt
	return &code, nil
}

// Compile-time interface check.
var _ auth.CodeRepository = (*CodeRepository)(nil)
