// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// ResetTokenTTL bounds the window between reset-code verification and
// the new password being committed.
const ResetTokenTTL = 30 * time.Minute

// PasswordResetSession is a one-shot capability token bridging "reset
// code verified" to "may set a new password". Stored hashed, consumed
// exactly once.
type PasswordResetSession struct {
	TokenHash string
	UserID    ulid.ULID
	CreatedAt time.Time
	ExpiresAt time.Time
	IsUsed    bool
}

// NewPasswordResetSession creates a reset capability for a user.
func NewPasswordResetSession(userID ulid.ULID, tokenHash string) *PasswordResetSession {
	now := time.Now()
	return &PasswordResetSession{
		TokenHash: tokenHash,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ResetTokenTTL),
	}
}

// Usable reports whether the capability is still valid at the given time.
func (p *PasswordResetSession) Usable(t time.Time) bool {
	return !p.IsUsed && p.ExpiresAt.After(t)
}

// ResetRepository manages password-reset capability persistence.
type ResetRepository interface {
	// Insert stores a new reset session.
	Insert(ctx context.Context, reset *PasswordResetSession) error

	// GetByTokenHash retrieves a reset session by token hash.
	// Returns ErrNotFound if absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordResetSession, error)

	// MarkUsed consumes the capability. Returns ErrNotFound if the row
	// is absent or already used, so consumption is race-safe.
	MarkUsed(ctx context.Context, tokenHash string) error
}
