// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package httpapi_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildboar/accountd/internal/auth"
	"github.com/wildboar/accountd/internal/auth/authtest"
	"github.com/wildboar/accountd/internal/httpapi"
	"github.com/wildboar/accountd/internal/i18n"
)

const testPassword = "Str0ng!pass"

// harness wires the HTTP surface over in-memory fakes.
type harness struct {
	users    *authtest.UserStore
	codes    *authtest.CodeStore
	sessions *authtest.SessionStore
	mailbox  *authtest.Mailbox
	wallets  *authtest.Wallets
	hasher   *auth.Argon2idHasher
	handler  http.Handler
}

func newHarness() *harness {
	h := &harness{
		users:    authtest.NewUserStore(),
		codes:    authtest.NewCodeStore(),
		sessions: authtest.NewSessionStore(),
		mailbox:  authtest.NewMailbox(),
		wallets:  authtest.NewWallets(),
		hasher:   auth.NewArgon2idHasher(),
	}
	tx := authtest.Tx{}
	resets := authtest.NewResetStore()
	codeSvc := auth.NewCodeService(h.codes, tx)
	sessionSvc := auth.NewSessionService(h.sessions, h.users, tx)
	accounts := auth.NewAccountService(h.users, codeSvc, h.mailbox, tx)
	flows := auth.NewService(h.users, codeSvc, sessionSvc, h.hasher, h.mailbox, h.wallets, tx)
	recovery := auth.NewRecoveryService(h.users, codeSvc, sessionSvc, resets, h.hasher, h.mailbox, tx)

	h.handler = httpapi.NewServer(flows, recovery, accounts, sessionSvc).Router(nil)
	return h
}

func (h *harness) addUser(t *testing.T, email string) *auth.User {
	t.Helper()
	hash, err := h.hasher.Hash(testPassword)
	require.NoError(t, err)
	user := auth.NewUser(email, hash)
	user.IsEmailVerified = true
	h.users.Add(user)
	return user
}

type response struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
	rec      *httptest.ResponseRecorder
}

func (h *harness) post(t *testing.T, path string, body any, cookies ...*http.Cookie) response {
	t.Helper()
	return h.do(t, http.MethodPost, path, body, cookies...)
}

func (h *harness) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	resp := response{rec: rec}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return resp
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == httpapi.SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func langCookie(lang string) *http.Cookie {
	return &http.Cookie{Name: httpapi.LangCookieName, Value: lang}
}

func TestRegisterFlow(t *testing.T) {
	h := newHarness()

	resp := h.post(t, "/register", map[string]string{
		"email":            "new@example.com",
		"password":         testPassword,
		"password_confirm": testPassword,
		"first_name":       "Ada",
	})
	require.Equal(t, http.StatusOK, resp.rec.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "/register/confirm", resp.Redirect)

	code := h.mailbox.Last().Code
	require.NotEmpty(t, code)

	confirm := h.post(t, "/register/confirm", map[string]string{
		"email": "new@example.com",
		"code":  code,
	})
	require.Equal(t, http.StatusOK, confirm.rec.Code)
	assert.Equal(t, "/dashboard", confirm.Redirect)

	cookie := sessionCookie(t, confirm.rec)
	assert.True(t, cookie.HttpOnly)
	assert.Len(t, h.wallets.Provisioned, 1)
}

func TestRegister_ValidationMessageLocalized(t *testing.T) {
	h := newHarness()
	body := map[string]string{
		"email":            "nope",
		"password":         testPassword,
		"password_confirm": testPassword,
	}

	// Default language without a cookie.
	resp := h.post(t, "/register", body)
	require.Equal(t, http.StatusBadRequest, resp.rec.Code)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, i18n.T(i18n.DefaultLang, "email_required"), resp.Message)

	resp = h.post(t, "/register", body, langCookie("en"))
	require.Equal(t, http.StatusBadRequest, resp.rec.Code)
	assert.Equal(t, i18n.T("en", "email_required"), resp.Message)
}

func TestRegister_SendFailureIsServerError(t *testing.T) {
	h := newHarness()
	h.mailbox.FailWith = errors.New("smtp down")

	resp := h.post(t, "/register", map[string]string{
		"email":            "new@example.com",
		"password":         testPassword,
		"password_confirm": testPassword,
	})
	assert.Equal(t, http.StatusInternalServerError, resp.rec.Code)
	assert.Equal(t, i18n.T(i18n.DefaultLang, "send_email_failed"), resp.Message)
}

func TestLoginFlow_WithSecondFactor(t *testing.T) {
	h := newHarness()
	h.addUser(t, "user@example.com")

	resp := h.post(t, "/login", map[string]string{
		"email":    "user@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, resp.rec.Code)
	assert.Equal(t, "/login/2fa", resp.Redirect)
	assert.Empty(t, resp.rec.Result().Cookies(), "no session cookie before the second factor")

	second := h.post(t, "/login/2fa", map[string]string{
		"email": "user@example.com",
		"code":  h.mailbox.Last().Code,
	})
	require.Equal(t, http.StatusOK, second.rec.Code)
	assert.Equal(t, "/dashboard", second.Redirect)
	sessionCookie(t, second.rec)
}

func TestLogin_BadCredentials(t *testing.T) {
	h := newHarness()
	h.addUser(t, "user@example.com")

	resp := h.post(t, "/login", map[string]string{
		"email":    "user@example.com",
		"password": "Wrong1!password",
	}, langCookie("en"))
	require.Equal(t, http.StatusBadRequest, resp.rec.Code)
	assert.Equal(t, i18n.T("en", "incorrect_email_or_password"), resp.Message)
}

func TestLogin_InternalErrorIsOpaque(t *testing.T) {
	h := newHarness()
	h.users.FailWith = errors.New("connection refused")

	resp := h.post(t, "/login", map[string]string{
		"email":    "user@example.com",
		"password": testPassword,
	}, langCookie("en"))
	require.Equal(t, http.StatusInternalServerError, resp.rec.Code)
	assert.Equal(t, i18n.T("en", "internal_error"), resp.Message)
	assert.NotContains(t, resp.Message, "connection refused")
}

func TestForgotSendCode_AlwaysSuccessShaped(t *testing.T) {
	h := newHarness()

	resp := h.post(t, "/forgot/send-code", map[string]string{
		"email": "stranger@example.com",
	}, langCookie("en"))
	require.Equal(t, http.StatusOK, resp.rec.Code)
	assert.Equal(t, i18n.T("en", "code_sent_if_exists"), resp.Message)
	assert.Empty(t, h.mailbox.Sent)
}

func TestForgotFlow(t *testing.T) {
	h := newHarness()
	h.addUser(t, "user@example.com")

	resp := h.post(t, "/forgot/send-code", map[string]string{"email": "user@example.com"})
	require.Equal(t, http.StatusOK, resp.rec.Code)

	verify := h.post(t, "/forgot/verify", map[string]string{
		"email": "user@example.com",
		"code":  h.mailbox.Last().Code,
	})
	require.Equal(t, http.StatusOK, verify.rec.Code)
	require.Contains(t, verify.Redirect, "/forgot/new-password?token=")
	token := verify.Redirect[len("/forgot/new-password?token="):]

	form := h.do(t, http.MethodGet, "/forgot/new-password?token="+token, nil)
	require.Equal(t, http.StatusOK, form.rec.Code)

	complete := h.post(t, "/forgot/new-password", map[string]string{
		"token":            token,
		"password":         "N3w!password",
		"password_confirm": "N3w!password",
	})
	require.Equal(t, http.StatusOK, complete.rec.Code)
	assert.Equal(t, "/login", complete.Redirect)

	// The token is spent.
	again := h.post(t, "/forgot/new-password", map[string]string{
		"token":            token,
		"password":         "N3w!password",
		"password_confirm": "N3w!password",
	}, langCookie("en"))
	assert.Equal(t, http.StatusBadRequest, again.rec.Code)
	assert.Equal(t, i18n.T("en", "link_expired"), again.Message)
}

func TestForgotNewPasswordForm_BadToken(t *testing.T) {
	h := newHarness()

	resp := h.do(t, http.MethodGet, "/forgot/new-password?token=bogus", nil, langCookie("en"))
	assert.Equal(t, http.StatusBadRequest, resp.rec.Code)
	assert.Equal(t, i18n.T("en", "link_expired"), resp.Message)
}

func TestAuthenticationGate(t *testing.T) {
	h := newHarness()

	resp := h.post(t, "/logout", nil)
	require.Equal(t, http.StatusUnauthorized, resp.rec.Code)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "/login", resp.Redirect)

	// The gate clears any stale cookie.
	for _, c := range resp.rec.Result().Cookies() {
		if c.Name == httpapi.SessionCookieName {
			assert.Empty(t, c.Value)
			assert.Negative(t, c.MaxAge)
		}
	}
}

func (h *harness) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	resp := h.post(t, "/login", map[string]string{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, resp.rec.Code)
	second := h.post(t, "/login/2fa", map[string]string{"email": email, "code": h.mailbox.Last().Code})
	require.Equal(t, http.StatusOK, second.rec.Code)
	return sessionCookie(t, second.rec)
}

func TestLogout(t *testing.T) {
	h := newHarness()
	h.addUser(t, "user@example.com")
	cookie := h.login(t, "user@example.com")

	resp := h.post(t, "/logout", nil, cookie)
	require.Equal(t, http.StatusOK, resp.rec.Code)
	assert.Equal(t, "/login", resp.Redirect)

	again := h.post(t, "/logout", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, again.rec.Code)
}

func TestEmailSlotEndpoints(t *testing.T) {
	h := newHarness()
	user := h.addUser(t, "primary@example.com")
	cookie := h.login(t, "primary@example.com")

	assign := h.post(t, "/settings/security/emails/assign",
		map[string]string{"slot": "backup", "email": "backup@example.com"}, cookie)
	require.Equal(t, http.StatusOK, assign.rec.Code)

	send := h.post(t, "/settings/security/emails/send-code",
		map[string]string{"slot": "backup"}, cookie)
	require.Equal(t, http.StatusOK, send.rec.Code)
	assert.Equal(t, "backup@example.com", h.mailbox.Last().To)

	confirm := h.post(t, "/settings/security/emails/confirm",
		map[string]string{"slot": "backup", "code": h.mailbox.Last().Code}, cookie)
	require.Equal(t, http.StatusOK, confirm.rec.Code)

	stored, err := h.users.GetByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsBackupEmailVerified)

	del := h.post(t, "/settings/security/emails/delete",
		map[string]string{"slot": "backup"}, cookie)
	require.Equal(t, http.StatusOK, del.rec.Code)

	stored, err = h.users.GetByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.BackupEmail)
}

func TestEmailDelete_LastAddress(t *testing.T) {
	h := newHarness()
	h.addUser(t, "primary@example.com")
	cookie := h.login(t, "primary@example.com")

	resp := h.post(t, "/settings/security/emails/delete",
		map[string]string{"slot": "primary"}, cookie, langCookie("en"))
	require.Equal(t, http.StatusBadRequest, resp.rec.Code)
	assert.Equal(t, i18n.T("en", "cannot_delete_last_email"), resp.Message)
}

func TestChangePasswordEndpoints(t *testing.T) {
	h := newHarness()
	h.addUser(t, "user@example.com")
	cookie := h.login(t, "user@example.com")

	start := h.post(t, "/settings/security/send-code", map[string]string{
		"password":         "N3w!password",
		"password_confirm": "N3w!password",
	}, cookie)
	require.Equal(t, http.StatusOK, start.rec.Code)
	assert.Equal(t, auth.PurposePasswordChange, h.mailbox.Last().Purpose)

	change := h.post(t, "/settings/security/change-password", map[string]string{
		"code":             h.mailbox.Last().Code,
		"password":         "N3w!password",
		"password_confirm": "N3w!password",
	}, cookie)
	require.Equal(t, http.StatusOK, change.rec.Code)

	// The initiating session is still valid afterwards.
	resp := h.post(t, "/settings/security/emails/send-code",
		map[string]string{"slot": "primary"}, cookie)
	assert.Equal(t, http.StatusOK, resp.rec.Code)
}

func TestSetLang(t *testing.T) {
	h := newHarness()

	resp := h.post(t, "/lang", map[string]string{"lang": "en"})
	require.Equal(t, http.StatusOK, resp.rec.Code)

	var found bool
	for _, c := range resp.rec.Result().Cookies() {
		if c.Name == httpapi.LangCookieName {
			found = true
			assert.Equal(t, "en", c.Value)
		}
	}
	assert.True(t, found, "lang cookie must be set")

	// Unsupported languages are ignored without error.
	resp = h.post(t, "/lang", map[string]string{"lang": "xx"})
	require.Equal(t, http.StatusOK, resp.rec.Code)
	assert.Empty(t, resp.rec.Result().Cookies())
}

func TestMalformedBody(t *testing.T) {
	h := newHarness()

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
