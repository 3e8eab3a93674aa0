// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package postgres_test

import (
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildboar/accountd/internal/auth"
	"github.com/wildboar/accountd/internal/auth/postgres"
	"github.com/wildboar/accountd/internal/store"
	"github.com/wildboar/accountd/pkg/errutil"
)

var userCols = []string{
	"id", "created_at", "updated_at", "email", "backup_email", "first_name",
	"last_name", "phone", "password_hash", "is_active", "is_email_verified",
	"is_backup_email_verified", "two_factor_enabled", "account_type",
}

func newMockDB(t *testing.T) (pgxmock.PgxPoolIface, *store.DB) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, store.NewDB(mock)
}

func sampleUser() *auth.User {
	user := auth.NewUser("user@example.com", "$argon2id$v=19$m=65536,t=1,p=4$YWJj$YWJj")
	user.FirstName = "Ada"
	user.LastName = "Lovelace"
	return user
}

func backupArg(user *auth.User) *string {
	if user.BackupEmail == "" {
		return nil
	}
	return &user.BackupEmail
}

func createArgs(user *auth.User) []any {
	return []any{
		user.ID.String(), user.CreatedAt, user.UpdatedAt, user.Email, backupArg(user),
		user.FirstName, user.LastName, user.Phone, user.PasswordHash,
		user.IsActive, user.IsEmailVerified, user.IsBackupEmailVerified,
		user.TwoFactorEnabled, user.AccountType,
	}
}

func updateArgs(user *auth.User) []any {
	return []any{
		user.ID.String(), user.UpdatedAt, user.Email, backupArg(user),
		user.FirstName, user.LastName, user.Phone, user.PasswordHash,
		user.IsActive, user.IsEmailVerified, user.IsBackupEmailVerified,
		user.TwoFactorEnabled, user.AccountType,
	}
}

func userRow(user *auth.User) *pgxmock.Rows {
	var backup *string
	if user.BackupEmail != "" {
		backup = &user.BackupEmail
	}
	return pgxmock.NewRows(userCols).AddRow(
		user.ID.String(), user.CreatedAt, user.UpdatedAt, user.Email, backup,
		user.FirstName, user.LastName, user.Phone, user.PasswordHash,
		user.IsActive, user.IsEmailVerified, user.IsBackupEmailVerified,
		user.TwoFactorEnabled, user.AccountType,
	)
}

func TestUserRepository_Create(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewUserRepository(db)
	user := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(createArgs(user)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(t.Context(), user))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_UniqueViolation(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewUserRepository(db)
	user := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(createArgs(user)...).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := repo.Create(t.Context(), user)
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestUserRepository_GetByID(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewUserRepository(db)
	user := sampleUser()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(user.ID.String()).
		WillReturnRows(userRow(user))

	got, err := repo.GetByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Email, got.Email)
	assert.Empty(t, got.BackupEmail)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewUserRepository(db)
	id := ulid.Make()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(id.String()).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(t.Context(), id)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestUserRepository_GetByEmail_Normalizes(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewUserRepository(db)
	user := sampleUser()
	user.BackupEmail = "backup@example.com"

	// The repository lowercases before querying either slot.
	mock.ExpectQuery("LOWER\\(email\\) = \\$1 OR LOWER\\(backup_email\\) = \\$1").
		WithArgs("user@example.com").
		WillReturnRows(userRow(user))

	got, err := repo.GetByEmail(t.Context(), "USER@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "backup@example.com", got.BackupEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_EmailInUse(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewUserRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("user@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	inUse, err := repo.EmailInUse(t.Context(), "user@example.com")
	require.NoError(t, err)
	assert.True(t, inUse)
}

func TestUserRepository_Update(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewUserRepository(db)
	user := sampleUser()

	mock.ExpectExec("UPDATE users SET").
		WithArgs(updateArgs(user)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(t.Context(), user))
}

func TestUserRepository_Update_Failures(t *testing.T) {
	t.Run("missing row", func(t *testing.T) {
		mock, db := newMockDB(t)
		repo := postgres.NewUserRepository(db)
		user := sampleUser()

		mock.ExpectExec("UPDATE users SET").
			WithArgs(updateArgs(user)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(t.Context(), user)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorContext(t, err, "user_id", user.ID.String())
	})

	t.Run("unique violation", func(t *testing.T) {
		mock, db := newMockDB(t)
		repo := postgres.NewUserRepository(db)
		user := sampleUser()

		mock.ExpectExec("UPDATE users SET").
			WithArgs(updateArgs(user)...).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := repo.Update(t.Context(), user)
		assert.ErrorIs(t, err, auth.ErrEmailTaken)
		errutil.AssertErrorCode(t, err, "USER_EMAIL_TAKEN")
	})
}

func TestUserRepository_Delete(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewUserRepository(db)
	id := ulid.Make()

	mock.ExpectExec("DELETE FROM users").
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(t.Context(), id))

	mock.ExpectExec("DELETE FROM users").
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, repo.Delete(t.Context(), id), auth.ErrNotFound)
}

func TestUserRepository_ScanRoundTrip(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewUserRepository(db)

	user := sampleUser()
	user.BackupEmail = "backup@example.com"
	user.IsBackupEmailVerified = true
	user.Phone = "+1234567"
	user.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user.UpdatedAt = user.CreatedAt

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(user.ID.String()).
		WillReturnRows(userRow(user))

	got, err := repo.GetByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}
