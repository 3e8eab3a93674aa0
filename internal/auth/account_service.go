// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// CodeMailer delivers a verification code to an address. Implementations
// own template rendering, subjects, and localization; flows only decide
// who gets which code.
type CodeMailer interface {
	SendCode(ctx context.Context, to string, purpose Purpose, code, lang string) error
}

// AccountService manages a user's two email slots.
type AccountService struct {
	users  UserRepository
	codes  *CodeService
	mailer CodeMailer
	tx     TxRunner
}

// NewAccountService creates an AccountService.
func NewAccountService(users UserRepository, codes *CodeService, mailer CodeMailer, tx TxRunner) *AccountService {
	return &AccountService{
		users:  users,
		codes:  codes,
		mailer: mailer,
		tx:     tx,
	}
}

// FindByEmail looks a user up by either slot. Returns ErrNotFound when
// no account carries the address.
func (s *AccountService) FindByEmail(ctx context.Context, addr string) (*User, error) {
	addr, err := ValidateEmail(addr)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// AssignSlot replaces the address in a slot and resets its verified
// flag. Fails with ErrEmailTaken when the address occupies the user's
// other slot or any slot of another account. The uniqueness check and
// the write run in one transaction; the residual race is caught by the
// store's unique constraint and surfaced as the same error.
func (s *AccountService) AssignSlot(ctx context.Context, user *User, slot Slot, newEmail string) error {
	if !slot.Valid() {
		return oops.Code("ACCOUNT_INVALID_SLOT").Errorf("unknown slot: %d", slot)
	}
	addr, err := ValidateEmail(newEmail)
	if err != nil {
		return err
	}

	other := SlotBackup
	if slot == SlotBackup {
		other = SlotPrimary
	}
	if occupied, ok := user.EmailAt(other); ok && NormalizeEmail(occupied) == addr {
		return oops.Code("ACCOUNT_EMAIL_TAKEN").
			With("slot", slot.String()).
			Wrap(ErrEmailTaken)
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		holder, err := s.users.GetByEmail(ctx, addr)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return oops.Code("ACCOUNT_LOOKUP_FAILED").
				With("operation", "check email uniqueness").
				Wrap(err)
		}
		if holder != nil && holder.ID.Compare(user.ID) != 0 {
			return oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("slot", slot.String()).
				Wrap(ErrEmailTaken)
		}

		user.SetEmail(slot, addr)
		user.UpdatedAt = time.Now()
		if err := s.users.Update(ctx, user); err != nil {
			if errors.Is(err, ErrEmailTaken) {
				return oops.Code("ACCOUNT_EMAIL_TAKEN").
					With("slot", slot.String()).
					Wrap(ErrEmailTaken)
			}
			return oops.Code("ACCOUNT_UPDATE_FAILED").
				With("operation", "assign email slot").
				With("slot", slot.String()).
				Wrap(err)
		}
		return nil
	})
}

// SendSlotCode issues an ownership-proof code for the address in a slot
// and emails it there. A cooldown hit re-sends the pending code's value.
func (s *AccountService) SendSlotCode(ctx context.Context, user *User, slot Slot, lang string) error {
	addr, ok := user.EmailAt(slot)
	if !ok {
		return oops.Code("ACCOUNT_SLOT_EMPTY").
			With("slot", slot.String()).
			Wrap(ErrEmailRequired)
	}

	code, _, err := s.codes.IssueOrCurrent(ctx, user.ID, PurposeRegistration)
	if err != nil {
		return err
	}
	if err := s.mailer.SendCode(ctx, addr, PurposeRegistration, code.Code, lang); err != nil {
		return oops.Code("ACCOUNT_SEND_FAILED").
			With("operation", "send slot verification code").
			With("slot", slot.String()).
			Wrap(ErrSendFailed)
	}
	return nil
}

// ConfirmSlot verifies an ownership-proof code and marks the slot
// verified. Code verification and the flag write commit together.
func (s *AccountService) ConfirmSlot(ctx context.Context, user *User, slot Slot, code string) error {
	if !slot.Valid() {
		return oops.Code("ACCOUNT_INVALID_SLOT").Errorf("unknown slot: %d", slot)
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.codes.Verify(ctx, user.ID, PurposeRegistration, code); err != nil {
			return err
		}
		user.MarkVerified(slot)
		user.UpdatedAt = time.Now()
		if err := s.users.Update(ctx, user); err != nil {
			return oops.Code("ACCOUNT_UPDATE_FAILED").
				With("operation", "confirm email slot").
				With("slot", slot.String()).
				Wrap(err)
		}
		return nil
	})
}

// DeleteSlot removes the address in a slot. The last remaining address
// cannot be deleted. Deleting the primary slot while a backup exists
// promotes the backup address and its verified flag into the primary
// slot and clears the backup.
func (s *AccountService) DeleteSlot(ctx context.Context, user *User, slot Slot) error {
	if !slot.Valid() {
		return oops.Code("ACCOUNT_INVALID_SLOT").Errorf("unknown slot: %d", slot)
	}

	switch slot {
	case SlotPrimary:
		if user.BackupEmail == "" {
			return oops.Code("ACCOUNT_LAST_EMAIL").Wrap(ErrCannotDeleteLastEmail)
		}
		user.Email = user.BackupEmail
		user.IsEmailVerified = user.IsBackupEmailVerified
		user.BackupEmail = ""
		user.IsBackupEmailVerified = false
	case SlotBackup:
		user.BackupEmail = ""
		user.IsBackupEmailVerified = false
	}

	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "delete email slot").
			With("slot", slot.String()).
			Wrap(err)
	}
	return nil
}
