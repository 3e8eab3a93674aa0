// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package auth provides the account, verification-code, and session core
// of the service.
package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Slot identifies one of a user's two email addresses.
type Slot int

// Email slots. Every user has a primary slot; the backup slot may be vacant.
const (
	SlotPrimary Slot = iota + 1
	SlotBackup
)

// String returns the slot name for logs.
func (s Slot) String() string {
	switch s {
	case SlotPrimary:
		return "primary"
	case SlotBackup:
		return "backup"
	default:
		return "unknown"
	}
}

// Valid reports whether the slot is one of the two known slots.
func (s Slot) Valid() bool {
	return s == SlotPrimary || s == SlotBackup
}

// emailPattern accepts the usual local@domain.tld shape. Deliverability is
// proven by the verification code, not by the pattern.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail lowercases and trims an address. All storage and
// comparison go through this so uniqueness is case-insensitive.
func NormalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ValidateEmail normalizes the address and checks its shape.
// Returns the normalized address or ErrEmailRequired.
func ValidateEmail(addr string) (string, error) {
	addr = NormalizeEmail(addr)
	if addr == "" || !emailPattern.MatchString(addr) {
		return "", ErrEmailRequired
	}
	return addr, nil
}

// User is an account with up to two independently verifiable email
// addresses. The zero BackupEmail string means the backup slot is vacant.
type User struct {
	ID                    ulid.ULID
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Email                 string
	BackupEmail           string
	FirstName             string
	LastName              string
	Phone                 string
	PasswordHash          string
	IsActive              bool
	IsEmailVerified       bool
	IsBackupEmailVerified bool
	TwoFactorEnabled      bool
	AccountType           string
}

// NewUser creates an unverified active user. Two-factor is on for every
// new account.
func NewUser(email, passwordHash string) *User {
	now := time.Now()
	return &User{
		ID:               ulid.Make(),
		CreatedAt:        now,
		UpdatedAt:        now,
		Email:            email,
		PasswordHash:     passwordHash,
		IsActive:         true,
		TwoFactorEnabled: true,
		AccountType:      "standard",
	}
}

// EmailAt returns the address in the given slot. The bool is false when
// the slot is vacant.
func (u *User) EmailAt(slot Slot) (string, bool) {
	switch slot {
	case SlotPrimary:
		return u.Email, u.Email != ""
	case SlotBackup:
		return u.BackupEmail, u.BackupEmail != ""
	default:
		return "", false
	}
}

// SetEmail replaces the address in the given slot and resets the slot's
// verified flag. Changing an address always requires re-verification.
func (u *User) SetEmail(slot Slot, addr string) {
	switch slot {
	case SlotPrimary:
		u.Email = addr
		u.IsEmailVerified = false
	case SlotBackup:
		u.BackupEmail = addr
		u.IsBackupEmailVerified = false
	}
}

// SlotVerified returns the verified flag for a slot.
func (u *User) SlotVerified(slot Slot) bool {
	switch slot {
	case SlotPrimary:
		return u.IsEmailVerified
	case SlotBackup:
		return u.IsBackupEmailVerified
	default:
		return false
	}
}

// MarkVerified sets the verified flag for a slot.
func (u *User) MarkVerified(slot Slot) {
	switch slot {
	case SlotPrimary:
		u.IsEmailVerified = true
	case SlotBackup:
		u.IsBackupEmailVerified = true
	}
}

// SlotOf resolves which slot an address occupies on this account.
// Comparison is against normalized addresses.
func (u *User) SlotOf(addr string) (Slot, bool) {
	addr = NormalizeEmail(addr)
	if addr == "" {
		return 0, false
	}
	if NormalizeEmail(u.Email) == addr {
		return SlotPrimary, true
	}
	if u.BackupEmail != "" && NormalizeEmail(u.BackupEmail) == addr {
		return SlotBackup, true
	}
	return 0, false
}

// IsAddressVerified reports whether the given address belongs to this
// account AND its slot is verified. Only such an address may receive
// security codes, even though either address resolves the account.
func (u *User) IsAddressVerified(addr string) bool {
	slot, ok := u.SlotOf(addr)
	if !ok {
		return false
	}
	return u.SlotVerified(slot)
}

// UserRepository manages user persistence. Implementations translate
// unique-constraint violations on either email column to ErrEmailTaken.
type UserRepository interface {
	// Create stores a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves the user whose primary or backup address
	// equals the normalized addr. Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, addr string) (*User, error)

	// EmailInUse reports whether the normalized addr occupies either
	// slot of any user.
	EmailInUse(ctx context.Context, addr string) (bool, error)

	// Update persists all mutable fields of the user.
	Update(ctx context.Context, user *User) error

	// Delete removes a user. Used by the registration rollback so a
	// failed signup does not keep the address occupied.
	Delete(ctx context.Context, id ulid.ULID) error
}
