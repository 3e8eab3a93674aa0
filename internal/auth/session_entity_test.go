// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSessionToken(t *testing.T) {
	token, hash, err := GenerateSessionToken()
	require.NoError(t, err)

	raw, err := hex.DecodeString(token)
	require.NoError(t, err)
	assert.Len(t, raw, SessionTokenBytes)

	assert.Equal(t, HashToken(token), hash)
	assert.NotEqual(t, token, hash)
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}

func TestNewSession(t *testing.T) {
	userID := ulid.Make()

	session, err := NewSession(userID, "somehash")
	require.NoError(t, err)
	assert.Equal(t, userID, session.UserID)
	assert.Equal(t, SessionTTL, session.ExpiresAt.Sub(session.CreatedAt))

	_, err = NewSession(ulid.ULID{}, "somehash")
	assert.Error(t, err)

	_, err = NewSession(userID, "")
	assert.Error(t, err)
}

func TestSession_IsExpiredAt(t *testing.T) {
	session, err := NewSession(ulid.Make(), "somehash")
	require.NoError(t, err)

	// The exact expiry instant already counts as expired.
	assert.True(t, session.IsExpiredAt(session.ExpiresAt))
	assert.False(t, session.IsExpiredAt(session.ExpiresAt.Add(-time.Second)))
	assert.True(t, session.IsExpiredAt(session.ExpiresAt.Add(time.Second)))
}

func TestPasswordResetSession_Usable(t *testing.T) {
	reset := NewPasswordResetSession(ulid.Make(), "somehash")

	assert.True(t, reset.Usable(reset.CreatedAt))
	assert.False(t, reset.Usable(reset.ExpiresAt))

	reset.IsUsed = true
	assert.False(t, reset.Usable(reset.CreatedAt))
}
