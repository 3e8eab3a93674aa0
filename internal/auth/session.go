// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32 // 32 bytes = 64 hex chars
	SessionTTL        = 30 * 24 * time.Hour
)

// Session maps an opaque bearer token to a user. The cookie carries the
// plaintext token; only its SHA-256 is stored.
type Session struct {
	TokenHash string
	UserID    ulid.ULID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSession creates a session record for a user from a token hash.
func NewSession(userID ulid.ULID, tokenHash string) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	now := time.Now()
	return &Session{
		TokenHash: tokenHash,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}, nil
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !s.ExpiresAt.After(t)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token goes to the client; the hash goes to the database.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashToken(token)

	return token, hash, nil
}

// HashToken computes the SHA-256 hash of an opaque token. Used for both
// session tokens and password-reset tokens at rest.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Insert stores a new session.
	Insert(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by token hash.
	// Returns ErrNotFound if absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Delete removes one session by token hash.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteByUser removes all sessions for a user, except the one with
	// exceptTokenHash when non-empty.
	DeleteByUser(ctx context.Context, userID ulid.ULID, exceptTokenHash string) error

	// DeleteExpired removes all globally expired sessions and returns
	// the count of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
