// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/wildboar/accountd/internal/observability"
)

// RecoveryService orchestrates the forgot-password and authenticated
// password-change flows.
type RecoveryService struct {
	users    UserRepository
	codes    *CodeService
	sessions *SessionService
	resets   ResetRepository
	hasher   PasswordHasher
	mailer   CodeMailer
	tx       TxRunner
	now      func() time.Time
}

// NewRecoveryService creates a RecoveryService.
func NewRecoveryService(
	users UserRepository,
	codes *CodeService,
	sessions *SessionService,
	resets ResetRepository,
	hasher PasswordHasher,
	mailer CodeMailer,
	tx TxRunner,
) *RecoveryService {
	return &RecoveryService{
		users:    users,
		codes:    codes,
		sessions: sessions,
		resets:   resets,
		hasher:   hasher,
		mailer:   mailer,
		tx:       tx,
		now:      time.Now,
	}
}

// SendResetCode issues a reset code to the typed address. An unknown
// address succeeds silently so accounts cannot be enumerated; a known
// but unverified address is the one documented exception and fails with
// ErrEmailNotVerified.
func (s *RecoveryService) SendResetCode(ctx context.Context, email, lang string) error {
	addr, err := ValidateEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("RESET_SEND_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	if !user.IsAddressVerified(addr) {
		return oops.Code("RESET_EMAIL_NOT_VERIFIED").Wrap(ErrEmailNotVerified)
	}

	code, err := s.codes.Issue(ctx, user.ID, PurposeReset)
	if err != nil {
		return err
	}
	if err := s.mailer.SendCode(ctx, addr, PurposeReset, code.Code, lang); err != nil {
		return oops.Code("RESET_SEND_FAILED").
			With("operation", "send reset code").
			Wrap(ErrSendFailed)
	}
	observability.RecordCodeIssued(string(PurposeReset))
	return nil
}

// VerifyResetCode consumes a reset code and mints a one-shot,
// time-boxed capability token. The plaintext token goes back to the
// caller as a continuation handle; only its hash is stored. An unknown
// email fails the same way as a wrong code.
func (s *RecoveryService) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	addr, err := ValidateEmail(email)
	if err != nil {
		return "", err
	}
	user, err := s.users.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code("RESET_CODE_INVALID").Wrap(ErrInvalidCode)
		}
		return "", oops.Code("RESET_VERIFY_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	var token string
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.codes.Verify(ctx, user.ID, PurposeReset, code); err != nil {
			return err
		}
		plaintext, hash, err := GenerateSessionToken()
		if err != nil {
			return err
		}
		if err := s.resets.Insert(ctx, NewPasswordResetSession(user.ID, hash)); err != nil {
			return oops.Code("RESET_VERIFY_FAILED").
				With("operation", "insert reset session").
				Wrap(err)
		}
		token = plaintext
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ValidateResetToken checks that a capability token is known, unused,
// and unexpired, without consuming it. Used by the form GET before the
// user types a new password.
func (s *RecoveryService) ValidateResetToken(ctx context.Context, token string) error {
	reset, err := s.loadReset(ctx, token)
	if err != nil {
		return err
	}
	if !reset.Usable(s.now()) {
		return oops.Code("RESET_LINK_EXPIRED").Wrap(ErrLinkExpired)
	}
	return nil
}

// CompleteReset consumes the capability token and commits the new
// password. Every session for the user is revoked: a forgotten-password
// reset intentionally logs out all devices.
func (s *RecoveryService) CompleteReset(ctx context.Context, token, password, passwordConfirm string) error {
	if password != passwordConfirm {
		return oops.Code("RESET_PASSWORD_MISMATCH").Wrap(ErrPasswordsDoNotMatch)
	}
	if err := ValidatePasswordPolicy(password); err != nil {
		return err
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		reset, err := s.loadReset(ctx, token)
		if err != nil {
			return err
		}
		if !reset.Usable(s.now()) {
			return oops.Code("RESET_LINK_EXPIRED").Wrap(ErrLinkExpired)
		}
		// MarkUsed fails when a concurrent request already consumed the
		// token, so exactly one reset can win.
		if err := s.resets.MarkUsed(ctx, reset.TokenHash); err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("RESET_LINK_EXPIRED").Wrap(ErrLinkExpired)
			}
			return oops.Code("RESET_COMPLETE_FAILED").
				With("operation", "consume reset session").
				Wrap(err)
		}

		user, err := s.users.GetByID(ctx, reset.UserID)
		if err != nil {
			return oops.Code("RESET_COMPLETE_FAILED").
				With("operation", "load user").
				Wrap(err)
		}
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return oops.Code("RESET_COMPLETE_FAILED").
				With("operation", "hash password").
				Wrap(err)
		}
		user.PasswordHash = hash
		user.UpdatedAt = s.now()
		if err := s.users.Update(ctx, user); err != nil {
			return oops.Code("RESET_COMPLETE_FAILED").
				With("operation", "update password").
				Wrap(err)
		}
		return s.sessions.RevokeAll(ctx, user.ID, "")
	})
	if err != nil {
		return err
	}
	observability.RecordPasswordChange("reset")
	return nil
}

// StartPasswordChange validates the candidate password and sends a
// confirmation code to the user's primary address. The policy runs
// before a code is even issued, so the user never burns a code on a
// password that would be rejected anyway.
func (s *RecoveryService) StartPasswordChange(ctx context.Context, user *User, password, passwordConfirm, lang string) error {
	if password != passwordConfirm {
		return oops.Code("CHANGE_PASSWORD_MISMATCH").Wrap(ErrPasswordsDoNotMatch)
	}
	if err := ValidatePasswordPolicy(password); err != nil {
		return err
	}

	code, _, err := s.codes.IssueOrCurrent(ctx, user.ID, PurposePasswordChange)
	if err != nil {
		return err
	}
	if err := s.mailer.SendCode(ctx, user.Email, PurposePasswordChange, code.Code, lang); err != nil {
		return oops.Code("CHANGE_SEND_FAILED").
			With("operation", "send password change code").
			Wrap(ErrSendFailed)
	}
	observability.RecordCodeIssued(string(PurposePasswordChange))
	return nil
}

// ConfirmPasswordChange verifies the code and commits the new password.
// All sessions except the one performing the change are revoked.
func (s *RecoveryService) ConfirmPasswordChange(ctx context.Context, user *User, currentToken, code, password, passwordConfirm string) error {
	if password != passwordConfirm {
		return oops.Code("CHANGE_PASSWORD_MISMATCH").Wrap(ErrPasswordsDoNotMatch)
	}
	if err := ValidatePasswordPolicy(password); err != nil {
		return err
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.codes.Verify(ctx, user.ID, PurposePasswordChange, code); err != nil {
			return err
		}
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return oops.Code("CHANGE_FAILED").
				With("operation", "hash password").
				Wrap(err)
		}
		user.PasswordHash = hash
		user.UpdatedAt = s.now()
		if err := s.users.Update(ctx, user); err != nil {
			return oops.Code("CHANGE_FAILED").
				With("operation", "update password").
				Wrap(err)
		}
		return s.sessions.RevokeAll(ctx, user.ID, currentToken)
	})
	if err != nil {
		return err
	}
	observability.RecordPasswordChange("change")
	return nil
}

func (s *RecoveryService) loadReset(ctx context.Context, token string) (*PasswordResetSession, error) {
	if token == "" {
		return nil, oops.Code("RESET_LINK_EXPIRED").Wrap(ErrLinkExpired)
	}
	reset, err := s.resets.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("RESET_LINK_EXPIRED").Wrap(ErrLinkExpired)
		}
		return nil, oops.Code("RESET_LOOKUP_FAILED").
			With("operation", "get reset session by token hash").
			Wrap(err)
	}
	return reset, nil
}
