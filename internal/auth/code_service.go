// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TxRunner executes a function inside a single store transaction.
// When the ambient context already carries a transaction, fn joins it
// instead of opening a nested one.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CodeService issues and verifies one-time codes. All state lives in the
// repository; every check re-reads current rows so attempt counters and
// cooldowns are accurate under concurrency.
type CodeService struct {
	codes CodeRepository
	tx    TxRunner
	now   func() time.Time
}

// NewCodeService creates a CodeService.
func NewCodeService(codes CodeRepository, tx TxRunner) *CodeService {
	return &CodeService{
		codes: codes,
		tx:    tx,
		now:   time.Now,
	}
}

// Issue generates and persists a fresh code for (user, purpose).
// Fails with ErrCodeCooldown if an unexpired, unused code was issued
// within the last CodeIssueCooldown; no new row is created in that case.
func (s *CodeService) Issue(ctx context.Context, userID ulid.ULID, purpose Purpose) (*VerificationCode, error) {
	code, _, err := s.issue(ctx, userID, purpose, false)
	return code, err
}

// IssueOrCurrent behaves like Issue, except a cooldown hit returns the
// pending code instead of failing. Resend endpoints use this so the user
// gets the same code again rather than a cooldown error. The returned
// bool is true when a new row was created.
func (s *CodeService) IssueOrCurrent(ctx context.Context, userID ulid.ULID, purpose Purpose) (*VerificationCode, bool, error) {
	return s.issue(ctx, userID, purpose, true)
}

func (s *CodeService) issue(ctx context.Context, userID ulid.ULID, purpose Purpose, fallback bool) (*VerificationCode, bool, error) {
	if !purpose.Valid() {
		return nil, false, oops.Code("CODE_INVALID_PURPOSE").Errorf("unknown purpose: %s", purpose)
	}
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, false, oops.Code("CODE_INVALID_USER").Errorf("user ID cannot be zero")
	}

	var (
		issued  *VerificationCode
		created bool
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		pending, err := s.codes.LatestActive(ctx, userID, purpose)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return oops.Code("CODE_ISSUE_FAILED").
				With("operation", "load pending code").
				With("purpose", string(purpose)).
				Wrap(err)
		}
		if pending != nil && s.now().Sub(pending.CreatedAt) < CodeIssueCooldown {
			if fallback {
				issued = pending
				return nil
			}
			return oops.Code("CODE_COOLDOWN").
				With("purpose", string(purpose)).
				Wrap(ErrCodeCooldown)
		}

		value, err := GenerateCode()
		if err != nil {
			return err
		}
		fresh := NewVerificationCode(userID, purpose, value)
		if err := s.codes.Insert(ctx, fresh); err != nil {
			return oops.Code("CODE_ISSUE_FAILED").
				With("operation", "insert code").
				With("purpose", string(purpose)).
				Wrap(err)
		}
		issued = fresh
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return issued, created, nil
}

// Verify checks a submitted code for (user, purpose).
//
// Two-path lookup: an exact value match is checked for used, expired,
// and attempt-exhausted states, then consumed. When the value matches no
// row, the latest unused code's attempts counter is incremented anyway,
// so guesses against the real pending code are counted even when they
// miss. The miss path always fails with ErrInvalidCode.
//
// Reaching MaxCodeAttempts burns the code: it is marked used so it can
// never be consumed, even if resubmitted correctly afterward.
func (s *CodeService) Verify(ctx context.Context, userID ulid.ULID, purpose Purpose, submitted string) error {
	if !purpose.Valid() {
		return oops.Code("CODE_INVALID_PURPOSE").Errorf("unknown purpose: %s", purpose)
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		match, err := s.codes.GetByValueForUpdate(ctx, userID, purpose, submitted)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return oops.Code("CODE_VERIFY_FAILED").
				With("operation", "load code by value").
				With("purpose", string(purpose)).
				Wrap(err)
		}

		if match == nil {
			return s.recordMiss(ctx, userID, purpose)
		}

		if match.IsUsed {
			return oops.Code("CODE_USED").With("purpose", string(purpose)).Wrap(ErrCodeUsed)
		}
		if match.IsExpiredAt(s.now()) {
			return oops.Code("CODE_EXPIRED").With("purpose", string(purpose)).Wrap(ErrCodeExpired)
		}
		if match.Attempts >= MaxCodeAttempts {
			// Burn the code so it cannot be retried.
			match.IsUsed = true
			if err := s.codes.Update(ctx, match); err != nil {
				return oops.Code("CODE_VERIFY_FAILED").
					With("operation", "burn code").
					Wrap(err)
			}
			return oops.Code("CODE_ATTEMPTS_EXHAUSTED").
				With("purpose", string(purpose)).
				Wrap(ErrTooManyAttempts)
		}

		match.Attempts++
		match.IsUsed = true
		if err := s.codes.Update(ctx, match); err != nil {
			return oops.Code("CODE_VERIFY_FAILED").
				With("operation", "consume code").
				Wrap(err)
		}
		return nil
	})
}

// recordMiss increments the pending code's attempts counter after a
// wrong guess, then fails with ErrInvalidCode either way.
func (s *CodeService) recordMiss(ctx context.Context, userID ulid.ULID, purpose Purpose) error {
	pending, err := s.codes.LatestUnusedForUpdate(ctx, userID, purpose)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("CODE_VERIFY_FAILED").
			With("operation", "load pending code").
			With("purpose", string(purpose)).
			Wrap(err)
	}
	if pending != nil {
		pending.Attempts++
		if err := s.codes.Update(ctx, pending); err != nil {
			return oops.Code("CODE_VERIFY_FAILED").
				With("operation", "record failed attempt").
				Wrap(err)
		}
	}
	return oops.Code("CODE_INVALID").With("purpose", string(purpose)).Wrap(ErrInvalidCode)
}
