// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import "regexp"

// MinPasswordLength is the policy minimum, counted in runes.
const MinPasswordLength = 8

// Character classes for the password policy. Letters cover Latin and
// Cyrillic ranges; the special class is anything outside letters and
// digits. The ranges are deliberately narrow (no ё) to keep parity with
// the messages users have been trained on.
var (
	passwordWhitespace = regexp.MustCompile(`\s`)
	passwordDigit      = regexp.MustCompile(`[0-9]`)
	passwordLower      = regexp.MustCompile(`[a-zа-я]`)
	passwordUpper      = regexp.MustCompile(`[A-ZА-Я]`)
	passwordSpecial    = regexp.MustCompile(`[^A-Za-zА-Яа-я0-9]`)
)

// ValidatePasswordPolicy checks a candidate password against the account
// password rules. Checks run in a fixed order and the first violated rule
// is returned; the user sees one fix at a time.
func ValidatePasswordPolicy(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if passwordWhitespace.MatchString(password) {
		return ErrPasswordWhitespace
	}
	if !passwordDigit.MatchString(password) {
		return ErrPasswordNoDigit
	}
	if !passwordLower.MatchString(password) {
		return ErrPasswordNoLower
	}
	if !passwordUpper.MatchString(password) {
		return ErrPasswordNoUpper
	}
	if !passwordSpecial.MatchString(password) {
		return ErrPasswordNoSpecial
	}
	return nil
}
