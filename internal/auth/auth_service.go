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

	"github.com/wildboar/accountd/internal/observability"
)

// WalletProvisioner creates the external wallet resource for a user.
// Provisioning is idempotent: at most one wallet per user, and a repeat
// call returns without error. Callable inside an ambient transaction.
type WalletProvisioner interface {
	Provision(ctx context.Context, userID ulid.ULID) error
}

// dummyPasswordHash is verified against when a user doesn't exist, to
// keep login response time consistent. This is NOT a real credential -
// it's a fake hash that will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterInput carries the registration form.
type RegisterInput struct {
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
	Phone           string
	Lang            string
}

// LoginResult is the outcome of a successful credential check: either a
// session token, or a signal that the second factor is still pending.
type LoginResult struct {
	TwoFactorRequired bool
	SessionToken      string
}

// Service orchestrates the registration and login flows.
type Service struct {
	users    UserRepository
	codes    *CodeService
	sessions *SessionService
	hasher   PasswordHasher
	mailer   CodeMailer
	wallets  WalletProvisioner
	tx       TxRunner
}

// NewService creates a flow Service.
func NewService(
	users UserRepository,
	codes *CodeService,
	sessions *SessionService,
	hasher PasswordHasher,
	mailer CodeMailer,
	wallets WalletProvisioner,
	tx TxRunner,
) *Service {
	return &Service{
		users:    users,
		codes:    codes,
		sessions: sessions,
		hasher:   hasher,
		mailer:   mailer,
		wallets:  wallets,
		tx:       tx,
	}
}

// Register creates an unverified user, issues a registration code, and
// emails it. When the email cannot be delivered the whole registration
// is rolled back and the user row removed, so the address stays
// available for a retry instead of stuck in limbo.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	addr, err := ValidateEmail(in.Email)
	if err != nil {
		return err
	}
	if in.Password != in.PasswordConfirm {
		return oops.Code("AUTH_PASSWORD_MISMATCH").Wrap(ErrPasswordsDoNotMatch)
	}
	if err := ValidatePasswordPolicy(in.Password); err != nil {
		return err
	}

	taken, err := s.users.EmailInUse(ctx, addr)
	if err != nil {
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check email uniqueness").
			Wrap(err)
	}
	if taken {
		return oops.Code("AUTH_EMAIL_TAKEN").Wrap(ErrEmailTaken)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user := NewUser(addr, hash)
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Phone = in.Phone

	var code *VerificationCode
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, ErrEmailTaken) {
				return oops.Code("AUTH_EMAIL_TAKEN").Wrap(ErrEmailTaken)
			}
			return oops.Code("AUTH_REGISTER_FAILED").
				With("operation", "create user").
				Wrap(err)
		}
		code, err = s.codes.Issue(ctx, user.ID, PurposeRegistration)
		return err
	})
	if err != nil {
		observability.RecordRegistration("failed")
		return err
	}

	if err := s.mailer.SendCode(ctx, addr, PurposeRegistration, code.Code, in.Lang); err != nil {
		// Compensating rollback: a registration whose code never
		// arrived must not keep the address occupied.
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			slog.Error("registration rollback failed",
				"user_id", user.ID.String(), "error", delErr)
		}
		observability.RecordRegistration("send_failed")
		return oops.Code("AUTH_SEND_FAILED").
			With("operation", "send registration code").
			Wrap(ErrSendFailed)
	}

	observability.RecordRegistration("started")
	observability.RecordCodeIssued(string(PurposeRegistration))
	return nil
}

// ResendRegistrationCode re-sends the pending registration code, or a
// fresh one when the previous has aged past the cooldown.
func (s *Service) ResendRegistrationCode(ctx context.Context, email, lang string) error {
	addr, err := ValidateEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_USER_NOT_FOUND").Wrap(ErrUserNotFound)
		}
		return oops.Code("AUTH_RESEND_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	code, created, err := s.codes.IssueOrCurrent(ctx, user.ID, PurposeRegistration)
	if err != nil {
		return err
	}
	if err := s.mailer.SendCode(ctx, addr, PurposeRegistration, code.Code, lang); err != nil {
		return oops.Code("AUTH_SEND_FAILED").
			With("operation", "resend registration code").
			Wrap(ErrSendFailed)
	}
	if created {
		observability.RecordCodeIssued(string(PurposeRegistration))
	}
	return nil
}

// ConfirmRegistration verifies the registration code, marks the primary
// address verified, provisions the wallet, and creates a session. All
// of it commits atomically; no partially verified account is ever
// persisted. Returns the plaintext session token.
func (s *Service) ConfirmRegistration(ctx context.Context, email, code string) (string, error) {
	addr, err := ValidateEmail(email)
	if err != nil {
		return "", err
	}
	user, err := s.users.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code("AUTH_USER_NOT_FOUND").Wrap(ErrUserNotFound)
		}
		return "", oops.Code("AUTH_CONFIRM_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	var token string
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.codes.Verify(ctx, user.ID, PurposeRegistration, code); err != nil {
			return err
		}
		user.MarkVerified(SlotPrimary)
		user.UpdatedAt = time.Now()
		if err := s.users.Update(ctx, user); err != nil {
			return oops.Code("AUTH_CONFIRM_FAILED").
				With("operation", "mark email verified").
				Wrap(ErrRegistrationFailed)
		}
		if err := s.wallets.Provision(ctx, user.ID); err != nil {
			return oops.Code("AUTH_CONFIRM_FAILED").
				With("operation", "provision wallet").
				Wrap(ErrRegistrationFailed)
		}
		token, err = s.sessions.Create(ctx, user.ID)
		if err != nil {
			return oops.Code("AUTH_CONFIRM_FAILED").
				With("operation", "create session").
				Wrap(ErrRegistrationFailed)
		}
		return nil
	})
	if err != nil {
		observability.RecordRegistration("confirm_failed")
		return "", err
	}

	observability.RecordRegistration("confirmed")
	return token, nil
}

// Login checks credentials against either email slot. Unknown address
// and wrong password are one failure mode so accounts cannot be
// enumerated. With two-factor on (the default), a login_2fa code goes
// to the typed address, which must be a verified slot of the account.
func (s *Service) Login(ctx context.Context, email, password, lang string) (*LoginResult, error) {
	addr, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	user, lookupErr := s.users.GetByEmail(ctx, addr)
	targetHash := dummyPasswordHash
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
	}

	// Always verify, against a dummy hash when the user is unknown, to
	// keep response time consistent.
	valid := s.hasher.Verify(password, targetHash)
	if user == nil || !valid || !user.IsActive {
		observability.RecordLogin("invalid_credentials")
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrIncorrectCredentials)
	}

	// The typed address must be a verified slot of this account; a
	// verified backup still works when the primary is pending
	// re-verification.
	if !user.IsAddressVerified(addr) {
		observability.RecordLogin("unverified")
		return nil, oops.Code("AUTH_EMAIL_NOT_VERIFIED").Wrap(ErrEmailNotVerified)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			user.PasswordHash = newHash
			user.UpdatedAt = time.Now()
			if err := s.users.Update(ctx, user); err != nil {
				slog.Warn("password hash upgrade failed",
					"user_id", user.ID.String(), "error", err)
			}
		}
	}

	if user.TwoFactorEnabled {
		// The code goes to the specific address the user typed.
		code, err := s.codes.Issue(ctx, user.ID, PurposeLogin2FA)
		if err != nil {
			return nil, err
		}
		if err := s.mailer.SendCode(ctx, addr, PurposeLogin2FA, code.Code, lang); err != nil {
			return nil, oops.Code("AUTH_SEND_FAILED").
				With("operation", "send login code").
				Wrap(ErrSendFailed)
		}
		observability.RecordCodeIssued(string(PurposeLogin2FA))
		observability.RecordLogin("2fa_required")
		return &LoginResult{TwoFactorRequired: true}, nil
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	observability.RecordLogin("success")
	return &LoginResult{SessionToken: token}, nil
}

// LoginSecondFactor verifies a login_2fa code and issues a session.
// An unknown email fails the same way as a wrong code.
func (s *Service) LoginSecondFactor(ctx context.Context, email, code string) (string, error) {
	addr, err := ValidateEmail(email)
	if err != nil {
		return "", err
	}
	user, err := s.users.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code("AUTH_CODE_INVALID").Wrap(ErrInvalidCode)
		}
		return "", oops.Code("AUTH_2FA_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	if err := s.codes.Verify(ctx, user.ID, PurposeLogin2FA, code); err != nil {
		observability.RecordLogin("2fa_failed")
		return "", err
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return "", err
	}
	observability.RecordLogin("success")
	return token, nil
}

// ResendLoginCode re-sends the pending login_2fa code to a verified
// address of the account.
func (s *Service) ResendLoginCode(ctx context.Context, email, lang string) error {
	addr, err := ValidateEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_USER_NOT_FOUND").Wrap(ErrUserNotFound)
		}
		return oops.Code("AUTH_RESEND_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	if !user.IsAddressVerified(addr) {
		return oops.Code("AUTH_EMAIL_NOT_VERIFIED").Wrap(ErrEmailNotVerified)
	}

	code, created, err := s.codes.IssueOrCurrent(ctx, user.ID, PurposeLogin2FA)
	if err != nil {
		return err
	}
	if err := s.mailer.SendCode(ctx, addr, PurposeLogin2FA, code.Code, lang); err != nil {
		return oops.Code("AUTH_SEND_FAILED").
			With("operation", "resend login code").
			Wrap(ErrSendFailed)
	}
	if created {
		observability.RecordCodeIssued(string(PurposeLogin2FA))
	}
	return nil
}

// Logout revokes the session behind the token. Unknown tokens are not
// an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}
