// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Purpose scopes a verification code to the flow that issued it.
type Purpose string

// The closed purpose set. Email-ownership proofs (registration and
// slot verification) share PurposeRegistration.
const (
	PurposeRegistration   Purpose = "registration"
	PurposeLogin2FA       Purpose = "login_2fa"
	PurposeReset          Purpose = "reset"
	PurposePasswordChange Purpose = "password_change"
)

// Valid reports whether the purpose is one of the known values.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeRegistration, PurposeLogin2FA, PurposeReset, PurposePasswordChange:
		return true
	}
	return false
}

// Verification code configuration.
const (
	CodeLength        = 6
	CodeTTL           = 15 * time.Minute
	CodeIssueCooldown = 60 * time.Second
	MaxCodeAttempts   = 5
)

// codeSpace is 10^CodeLength, the size of the uniform code value space.
var codeSpace = new(big.Int).Exp(big.NewInt(10), big.NewInt(CodeLength), nil)

// GenerateCode produces a cryptographically random fixed-length numeric
// string with a uniform digit distribution.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", oops.Code("CODE_GENERATE_FAILED").
			With("operation", "crypto/rand.Int").
			Wrap(err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}

// VerificationCode is a one-time code issued for a (user, purpose) pair.
// Rows are never deleted; a used or expired code is permanently dead.
type VerificationCode struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	Purpose   Purpose
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	IsUsed    bool
	Attempts  int
}

// NewVerificationCode creates a fresh unused code row.
func NewVerificationCode(userID ulid.ULID, purpose Purpose, code string) *VerificationCode {
	now := time.Now()
	return &VerificationCode{
		ID:        ulid.Make(),
		UserID:    userID,
		Purpose:   purpose,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(CodeTTL),
	}
}

// IsExpiredAt returns true if the code would be expired at the given time.
func (c *VerificationCode) IsExpiredAt(t time.Time) bool {
	return t.After(c.ExpiresAt)
}

// CodeRepository manages verification-code persistence. The ForUpdate
// variants take a row lock so verify's read-modify-write is serialized
// per (user, purpose); they must run inside a transaction.
type CodeRepository interface {
	// Insert stores a new code row.
	Insert(ctx context.Context, code *VerificationCode) error

	// LatestActive returns the most recent unused, unexpired code for
	// (user, purpose). Returns ErrNotFound when none is pending.
	LatestActive(ctx context.Context, userID ulid.ULID, purpose Purpose) (*VerificationCode, error)

	// GetByValueForUpdate returns the most recent code row for
	// (user, purpose) whose value equals code, regardless of used or
	// expired state, locking it. Returns ErrNotFound on no match.
	GetByValueForUpdate(ctx context.Context, userID ulid.ULID, purpose Purpose, code string) (*VerificationCode, error)

	// LatestUnusedForUpdate returns the most recent unused code row for
	// (user, purpose) irrespective of its value, locking it.
	// Returns ErrNotFound when none exists.
	LatestUnusedForUpdate(ctx context.Context, userID ulid.ULID, purpose Purpose) (*VerificationCode, error)

	// Update persists the attempts counter and used flag.
	Update(ctx context.Context, code *VerificationCode) error
}
