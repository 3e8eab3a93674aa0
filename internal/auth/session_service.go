// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionService issues and resolves opaque session tokens. Expired rows
// are cleaned up opportunistically: a global sweep on every create and
// deletion-on-discovery during resolve. Staleness only wastes storage;
// expiry is re-checked at use time regardless.
type SessionService struct {
	sessions SessionRepository
	users    UserRepository
	tx       TxRunner
	now      func() time.Time
}

// NewSessionService creates a SessionService.
func NewSessionService(sessions SessionRepository, users UserRepository, tx TxRunner) *SessionService {
	return &SessionService{
		sessions: sessions,
		users:    users,
		tx:       tx,
		now:      time.Now,
	}
}

// Create issues a session for a user and returns the plaintext token.
// Runs inside the ambient transaction when one is open, so session
// creation can be atomic with other state changes.
func (s *SessionService) Create(ctx context.Context, userID ulid.ULID) (string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return "", err
	}

	session, err := NewSession(userID, tokenHash)
	if err != nil {
		return "", err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		swept, err := s.sessions.DeleteExpired(ctx)
		if err != nil {
			return oops.Code("SESSION_SWEEP_FAILED").
				With("operation", "delete expired sessions").
				Wrap(err)
		}
		if swept > 0 {
			slog.Debug("swept expired sessions", "count", swept)
		}
		if err := s.sessions.Insert(ctx, session); err != nil {
			return oops.Code("SESSION_CREATE_FAILED").
				With("operation", "insert session").
				With("user_id", userID.String()).
				Wrap(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Resolve maps a plaintext token to its active user. Fails with
// ErrNotAuthenticated if the token is absent, unknown, or expired, or if
// the owning user is inactive. An expired session is deleted on
// discovery.
func (s *SessionService) Resolve(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, oops.Code("SESSION_MISSING").Wrap(ErrNotAuthenticated)
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_UNKNOWN").Wrap(ErrNotAuthenticated)
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpiredAt(s.now()) {
		if err := s.sessions.Delete(ctx, session.TokenHash); err != nil && !errors.Is(err, ErrNotFound) {
			slog.Warn("failed to delete expired session", "error", err)
		}
		return nil, oops.Code("SESSION_EXPIRED").Wrap(ErrNotAuthenticated)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_ORPHANED").Wrap(ErrNotAuthenticated)
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "load session user").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	if !user.IsActive {
		return nil, oops.Code("SESSION_USER_INACTIVE").Wrap(ErrNotAuthenticated)
	}

	return user, nil
}

// Revoke deletes one session by its plaintext token. Revoking an
// already-gone session is not an error.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.sessions.Delete(ctx, HashToken(token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// RevokeAll deletes every session for a user. A non-empty exceptToken
// preserves the session that initiated the change, to avoid self-lockout.
func (s *SessionService) RevokeAll(ctx context.Context, userID ulid.ULID, exceptToken string) error {
	exceptHash := ""
	if exceptToken != "" {
		exceptHash = HashToken(exceptToken)
	}
	if err := s.sessions.DeleteByUser(ctx, userID, exceptHash); err != nil {
		return oops.Code("SESSION_REVOKE_ALL_FAILED").
			With("operation", "delete sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}
