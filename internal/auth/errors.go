// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Domain failure set. Every value maps 1:1 to a localization key via
// MessageKey; flows branch on these with errors.Is and never invent
// ad-hoc error strings.
var (
	ErrEmailRequired         = errors.New("email required")
	ErrEmailTaken            = errors.New("email taken")
	ErrSendFailed            = errors.New("email send failed")
	ErrUserNotFound          = errors.New("user not found")
	ErrRegistrationFailed    = errors.New("registration failed")
	ErrInvalidCode           = errors.New("invalid code")
	ErrCodeUsed              = errors.New("code already used")
	ErrCodeExpired           = errors.New("code expired")
	ErrTooManyAttempts       = errors.New("too many attempts")
	ErrCodeCooldown          = errors.New("code issued too recently")
	ErrEmailNotVerified      = errors.New("email not verified")
	ErrLinkExpired           = errors.New("reset link expired")
	ErrPasswordsDoNotMatch   = errors.New("passwords do not match")
	ErrIncorrectCredentials  = errors.New("incorrect email or password")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrCannotDeleteLastEmail = errors.New("cannot delete last email")
)

// Password policy violations, one per rule. Policy checks run in a fixed
// order and report the first violated rule only.
var (
	ErrPasswordEmpty      = errors.New("password is empty")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrPasswordWhitespace = errors.New("password contains whitespace")
	ErrPasswordNoDigit    = errors.New("password missing digit")
	ErrPasswordNoLower    = errors.New("password missing lowercase letter")
	ErrPasswordNoUpper    = errors.New("password missing uppercase letter")
	ErrPasswordNoSpecial  = errors.New("password missing special character")
)

// messageKeys maps domain failures to localization keys. The keys are the
// contract with the frontend; renaming one is a breaking change.
var messageKeys = map[error]string{
	ErrEmailRequired:         "email_required",
	ErrEmailTaken:            "email_taken",
	ErrSendFailed:            "send_email_failed",
	ErrUserNotFound:          "user_not_found",
	ErrRegistrationFailed:    "registration_failed",
	ErrInvalidCode:           "invalid_code",
	ErrCodeUsed:              "code_used",
	ErrCodeExpired:           "code_expired",
	ErrTooManyAttempts:       "too_many_attempts",
	ErrCodeCooldown:          "code_cooldown",
	ErrEmailNotVerified:      "email_not_verified",
	ErrLinkExpired:           "link_expired",
	ErrPasswordsDoNotMatch:   "passwords_do_not_match",
	ErrIncorrectCredentials:  "incorrect_email_or_password",
	ErrCannotDeleteLastEmail: "cannot_delete_last_email",
	ErrPasswordEmpty:         "password_empty",
	ErrPasswordTooShort:      "password_min_length",
	ErrPasswordWhitespace:    "password_no_spaces",
	ErrPasswordNoDigit:       "password_digit",
	ErrPasswordNoLower:       "password_lower",
	ErrPasswordNoUpper:       "password_upper",
	ErrPasswordNoSpecial:     "password_special",
}

// MessageKey returns the localization key for a domain failure.
// Returns ("", false) for errors outside the closed set, which callers
// surface as a generic internal error instead.
func MessageKey(err error) (string, bool) {
	for sentinel, key := range messageKeys {
		if errors.Is(err, sentinel) {
			return key, true
		}
	}
	return "", false
}
