// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth_test

import (
	"encoding/hex"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildboar/accountd/internal/auth"
)

func TestSessionService_CreateAndResolve(t *testing.T) {
	f := newFixture()
	user := f.addUser(t, "user@example.com")

	token, err := f.sessionSvc.Create(t.Context(), user.ID)
	require.NoError(t, err)

	_, err = hex.DecodeString(token)
	require.NoError(t, err, "token must be opaque hex")

	resolved, err := f.sessionSvc.Resolve(t.Context(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestSessionService_Create_SweepsExpired(t *testing.T) {
	f := newFixture()
	user := f.addUser(t, "user@example.com")

	stale, err := f.sessionSvc.Create(t.Context(), user.ID)
	require.NoError(t, err)
	f.sessions.Expire(auth.HashToken(stale))

	_, err = f.sessionSvc.Create(t.Context(), user.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.sessions.Count(), "expired session must be swept on create")
}

func TestSessionService_Resolve_Failures(t *testing.T) {
	f := newFixture()
	user := f.addUser(t, "user@example.com")

	t.Run("empty token", func(t *testing.T) {
		_, err := f.sessionSvc.Resolve(t.Context(), "")
		assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := f.sessionSvc.Resolve(t.Context(), "deadbeef")
		assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	})

	t.Run("expired session is deleted on discovery", func(t *testing.T) {
		token, err := f.sessionSvc.Create(t.Context(), user.ID)
		require.NoError(t, err)
		f.sessions.Expire(auth.HashToken(token))

		_, err = f.sessionSvc.Resolve(t.Context(), token)
		assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
		assert.Equal(t, 0, f.sessions.Count())
	})

	t.Run("inactive user", func(t *testing.T) {
		token, err := f.sessionSvc.Create(t.Context(), user.ID)
		require.NoError(t, err)

		deactivated := f.reload(t, user)
		deactivated.IsActive = false
		require.NoError(t, f.users.Update(t.Context(), deactivated))

		_, err = f.sessionSvc.Resolve(t.Context(), token)
		assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	})
}

func TestSessionService_Revoke(t *testing.T) {
	f := newFixture()
	user := f.addUser(t, "user@example.com")

	token, err := f.sessionSvc.Create(t.Context(), user.ID)
	require.NoError(t, err)

	require.NoError(t, f.sessionSvc.Revoke(t.Context(), token))
	_, err = f.sessionSvc.Resolve(t.Context(), token)
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)

	// Revoking again, or revoking nothing, is not an error.
	assert.NoError(t, f.sessionSvc.Revoke(t.Context(), token))
	assert.NoError(t, f.sessionSvc.Revoke(t.Context(), ""))
}

func TestSessionService_RevokeAll(t *testing.T) {
	f := newFixture()
	user := f.addUser(t, "user@example.com")
	other := f.addUser(t, "other@example.com")

	kept, err := f.sessionSvc.Create(t.Context(), user.ID)
	require.NoError(t, err)
	dropped, err := f.sessionSvc.Create(t.Context(), user.ID)
	require.NoError(t, err)
	unrelated, err := f.sessionSvc.Create(t.Context(), other.ID)
	require.NoError(t, err)

	require.NoError(t, f.sessionSvc.RevokeAll(t.Context(), user.ID, kept))

	_, err = f.sessionSvc.Resolve(t.Context(), kept)
	assert.NoError(t, err, "the initiating session survives")
	_, err = f.sessionSvc.Resolve(t.Context(), dropped)
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	_, err = f.sessionSvc.Resolve(t.Context(), unrelated)
	assert.NoError(t, err, "other users are untouched")
}

func TestSessionService_RevokeAll_NoException(t *testing.T) {
	f := newFixture()
	user := f.addUser(t, "user@example.com")

	_, err := f.sessionSvc.Create(t.Context(), user.ID)
	require.NoError(t, err)
	_, err = f.sessionSvc.Create(t.Context(), user.ID)
	require.NoError(t, err)

	require.NoError(t, f.sessionSvc.RevokeAll(t.Context(), user.ID, ""))
	assert.Equal(t, 0, f.sessions.CountForUser(user.ID))
}

func TestSessionService_Create_UnknownUserStillIssues(t *testing.T) {
	// Create does not cross-check the user; the repository foreign key
	// owns that. The fakes accept any ID.
	f := newFixture()

	token, err := f.sessionSvc.Create(t.Context(), ulid.Make())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}
