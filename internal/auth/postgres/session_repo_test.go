// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package postgres_test

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildboar/accountd/internal/auth"
	"github.com/wildboar/accountd/internal/auth/postgres"
)

func sampleSession(t *testing.T) *auth.Session {
	t.Helper()
	session, err := auth.NewSession(ulid.Make(), auth.HashToken("token"))
	require.NoError(t, err)
	return session
}

func TestSessionRepository_Insert(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewSessionRepository(db)
	session := sampleSession(t)

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(session.TokenHash, session.UserID.String(), session.CreatedAt, session.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Insert(t.Context(), session))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewSessionRepository(db)
	session := sampleSession(t)

	mock.ExpectQuery("FROM sessions").
		WithArgs(session.TokenHash).
		WillReturnRows(pgxmock.NewRows([]string{"token_hash", "user_id", "created_at", "expires_at"}).
			AddRow(session.TokenHash, session.UserID.String(), session.CreatedAt, session.ExpiresAt))

	got, err := repo.GetByTokenHash(t.Context(), session.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, session, got)
}

func TestSessionRepository_GetByTokenHash_NotFound(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewSessionRepository(db)

	mock.ExpectQuery("FROM sessions").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByTokenHash(t.Context(), "missing")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSessionRepository_Delete(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewSessionRepository(db)

	mock.ExpectExec("DELETE FROM sessions WHERE token_hash").
		WithArgs("somehash").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(t.Context(), "somehash"))

	mock.ExpectExec("DELETE FROM sessions WHERE token_hash").
		WithArgs("somehash").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, repo.Delete(t.Context(), "somehash"), auth.ErrNotFound)
}

func TestSessionRepository_DeleteByUser(t *testing.T) {
	userID := ulid.Make()

	t.Run("all sessions", func(t *testing.T) {
		mock, db := newMockDB(t)
		repo := postgres.NewSessionRepository(db)

		mock.ExpectExec("DELETE FROM sessions WHERE user_id = \\$1\\s*$").
			WithArgs(userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))

		require.NoError(t, repo.DeleteByUser(t.Context(), userID, ""))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("all but the initiating session", func(t *testing.T) {
		mock, db := newMockDB(t)
		repo := postgres.NewSessionRepository(db)

		mock.ExpectExec("token_hash <> \\$2").
			WithArgs(userID.String(), "keephash").
			WillReturnResult(pgxmock.NewResult("DELETE", 2))

		require.NoError(t, repo.DeleteByUser(t.Context(), userID, "keephash"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows deleted is fine", func(t *testing.T) {
		mock, db := newMockDB(t)
		repo := postgres.NewSessionRepository(db)

		mock.ExpectExec("DELETE FROM sessions WHERE user_id").
			WithArgs(userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.NoError(t, repo.DeleteByUser(t.Context(), userID, ""))
	})
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	mock, db := newMockDB(t)
	repo := postgres.NewSessionRepository(db)

	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	n, err := repo.DeleteExpired(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
