// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/wildboar/accountd/internal/auth"
	"github.com/wildboar/accountd/internal/i18n"
)

// Cookie names. The session cookie is HTTP-only; the language cookie is
// a non-sensitive preference readable by the frontend.
const (
	SessionCookieName = "session_id"
	LangCookieName    = "lang"
)

// setSessionCookie attaches the session token to the response.
func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken extracts the session token from the request, or "".
func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// setLangCookie stores the language preference for a year.
func setLangCookie(w http.ResponseWriter, lang string) {
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		SameSite: http.SameSiteLaxMode,
	})
}

// requestLang returns the request's language preference, falling back
// to the default for a missing or unsupported value.
func requestLang(r *http.Request) string {
	c, err := r.Cookie(LangCookieName)
	if err != nil || !i18n.Supported(c.Value) {
		return i18n.DefaultLang
	}
	return c.Value
}
