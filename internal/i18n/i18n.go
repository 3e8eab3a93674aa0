// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package i18n provides static message lookup for the two supported
// languages. Lookup is a pure function of (lang, key).
package i18n

// DefaultLang is used when the requested language is unsupported.
const DefaultLang = "ru"

// Supported reports whether lang has a message table.
func Supported(lang string) bool {
	_, ok := tables[lang]
	return ok
}

// T returns the localized message for key. An unsupported lang falls
// back to DefaultLang; a missing key falls back to the default table,
// then to the key itself so a gap is visible instead of blank.
func T(lang, key string) string {
	table, ok := tables[lang]
	if !ok {
		table = tables[DefaultLang]
	}
	if msg, ok := table[key]; ok {
		return msg
	}
	if msg, ok := tables[DefaultLang][key]; ok {
		return msg
	}
	return key
}

var tables = map[string]map[string]string{
	"en": {
		"email_required":                "Enter a valid email address.",
		"password_empty":                "Enter a password.",
		"password_min_length":           "Password must be at least 8 characters long.",
		"password_no_spaces":            "Password must not contain spaces.",
		"password_digit":                "Password must contain at least one digit.",
		"password_lower":                "Password must contain at least one lowercase letter.",
		"password_upper":                "Password must contain at least one uppercase letter.",
		"password_special":              "Password must contain at least one special character.",
		"passwords_do_not_match":        "Passwords do not match.",
		"email_taken":                   "This email address is already registered.",
		"send_email_failed":             "Could not send the email. Please try again later.",
		"user_not_found":                "Account not found.",
		"registration_failed":           "Registration failed. Please try again.",
		"invalid_code":                  "Invalid code.",
		"code_used":                     "This code has already been used.",
		"code_expired":                  "This code has expired.",
		"too_many_attempts":             "Too many attempts. Request a new code.",
		"code_cooldown":                 "A code was sent recently. Wait a minute before requesting another.",
		"email_not_verified":            "This email address has not been verified.",
		"code_sent_if_exists":           "If this address is registered, a code has been sent.",
		"link_expired":                  "This link is no longer valid.",
		"incorrect_email_or_password":   "Incorrect email or password.",
		"cannot_delete_last_email":      "You cannot delete your only email address.",
		"internal_error":                "Something went wrong. Please try again.",
		"email_code_note":               "The code is valid for 15 minutes. If you did not request it, just ignore this email.",
		"email_subject_registration":    "Your registration code",
		"email_subject_login_2fa":       "Your sign-in code",
		"email_subject_reset":           "Your password reset code",
		"email_subject_password_change": "Your password change code",
	},
	"ru": {
		"email_required":                "Введите корректный адрес электронной почты.",
		"password_empty":                "Введите пароль.",
		"password_min_length":           "Пароль должен содержать не менее 8 символов.",
		"password_no_spaces":            "Пароль не должен содержать пробелов.",
		"password_digit":                "Пароль должен содержать хотя бы одну цифру.",
		"password_lower":                "Пароль должен содержать хотя бы одну строчную букву.",
		"password_upper":                "Пароль должен содержать хотя бы одну заглавную букву.",
		"password_special":              "Пароль должен содержать хотя бы один специальный символ.",
		"passwords_do_not_match":        "Пароли не совпадают.",
		"email_taken":                   "Этот адрес электронной почты уже зарегистрирован.",
		"send_email_failed":             "Не удалось отправить письмо. Попробуйте позже.",
		"user_not_found":                "Аккаунт не найден.",
		"registration_failed":           "Не удалось завершить регистрацию. Попробуйте ещё раз.",
		"invalid_code":                  "Неверный код.",
		"code_used":                     "Этот код уже был использован.",
		"code_expired":                  "Срок действия кода истёк.",
		"too_many_attempts":             "Слишком много попыток. Запросите новый код.",
		"code_cooldown":                 "Код был отправлен недавно. Подождите минуту перед повторным запросом.",
		"email_not_verified":            "Этот адрес электронной почты не подтверждён.",
		"code_sent_if_exists":           "Если этот адрес зарегистрирован, код был отправлен.",
		"link_expired":                  "Эта ссылка больше не действительна.",
		"incorrect_email_or_password":   "Неверный адрес электронной почты или пароль.",
		"cannot_delete_last_email":      "Нельзя удалить единственный адрес электронной почты.",
		"internal_error":                "Что-то пошло не так. Попробуйте ещё раз.",
		"email_code_note":               "Код действителен в течение 15 минут. Если вы его не запрашивали, просто проигнорируйте это письмо.",
		"email_subject_registration":    "Ваш код регистрации",
		"email_subject_login_2fa":       "Ваш код для входа",
		"email_subject_reset":           "Ваш код для сброса пароля",
		"email_subject_password_change": "Ваш код для смены пароля",
	},
}
