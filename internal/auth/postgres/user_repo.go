// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package postgres implements the auth repositories using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/wildboar/accountd/internal/auth"
	"github.com/wildboar/accountd/internal/store"
)

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db *store.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *store.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, created_at, updated_at, email, backup_email, first_name, last_name,
	phone, password_hash, is_active, is_email_verified, is_backup_email_verified,
	two_factor_enabled, account_type`

// isUniqueViolation reports whether err is a unique-constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Create stores a new user. A unique-index hit on either email column
// surfaces as auth.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	var backup *string
	if user.BackupEmail != "" {
		backup = &user.BackupEmail
	}

	_, err := r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO users (id, created_at, updated_at, email, backup_email, first_name,
			last_name, phone, password_hash, is_active, is_email_verified,
			is_backup_email_verified, two_factor_enabled, account_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		user.ID.String(),
		user.CreatedAt,
		user.UpdatedAt,
		user.Email,
		backup,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.PasswordHash,
		user.IsActive,
		user.IsEmailVerified,
		user.IsBackupEmailVerified,
		user.TwoFactorEnabled,
		user.AccountType,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_EMAIL_TAKEN").
				With("operation", "insert user").
				Wrap(auth.ErrEmailTaken)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves the user whose primary or backup address equals
// the normalized addr.
func (r *UserRepository) GetByEmail(ctx context.Context, addr string) (*auth.User, error) {
	addr = auth.NormalizeEmail(addr)
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = $1 OR LOWER(backup_email) = $1
	`, addr)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// EmailInUse reports whether the normalized addr occupies either slot
// of any user.
func (r *UserRepository) EmailInUse(ctx context.Context, addr string) (bool, error) {
	addr = auth.NormalizeEmail(addr)
	var exists bool
	err := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE LOWER(email) = $1 OR LOWER(backup_email) = $1
		)
	`, addr).Scan(&exists)
	if err != nil {
		return false, oops.Code("USER_EMAIL_CHECK_FAILED").
			With("operation", "check email in use").
			Wrap(err)
	}
	return exists, nil
}

// Update persists all mutable fields of the user.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	var backup *string
	if user.BackupEmail != "" {
		backup = &user.BackupEmail
	}

	result, err := r.db.Querier(ctx).Exec(ctx, `
		UPDATE users SET
			updated_at = $2,
			email = $3,
			backup_email = $4,
			first_name = $5,
			last_name = $6,
			phone = $7,
			password_hash = $8,
			is_active = $9,
			is_email_verified = $10,
			is_backup_email_verified = $11,
			two_factor_enabled = $12,
			account_type = $13
		WHERE id = $1
	`,
		user.ID.String(),
		user.UpdatedAt,
		user.Email,
		backup,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.PasswordHash,
		user.IsActive,
		user.IsEmailVerified,
		user.IsBackupEmailVerified,
		user.TwoFactorEnabled,
		user.AccountType,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_EMAIL_TAKEN").
				With("operation", "update user").
				Wrap(auth.ErrEmailTaken)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("user_id", user.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a user. Dependent rows go with it via ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Querier(ctx).Exec(ctx, `
		DELETE FROM users WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("user_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("user_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User. Callers handle pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr     string
		backup    *string
		user      auth.User
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&idStr,
		&createdAt,
		&updatedAt,
		&user.Email,
		&backup,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsEmailVerified,
		&user.IsBackupEmailVerified,
		&user.TwoFactorEnabled,
		&user.AccountType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	user.ID = id
	user.CreatedAt = createdAt
	user.UpdatedAt = updatedAt
	if backup != nil {
		user.BackupEmail = *backup
	}
	return &user, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
