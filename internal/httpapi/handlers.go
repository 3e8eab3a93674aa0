// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package httpapi

import (
	"net/http"

	"github.com/wildboar/accountd/internal/auth"
	"github.com/wildboar/accountd/internal/i18n"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
		FirstName       string `json:"first_name"`
		LastName        string `json:"last_name"`
		Phone           string `json:"phone"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrEmailRequired)
		return
	}

	err := s.flows.Register(r.Context(), auth.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		Lang:            requestLang(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", "/register/confirm")
}

func (s *Server) handleRegisterConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrInvalidCode)
		return
	}

	token, err := s.flows.ConfirmRegistration(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	setSessionCookie(w, token)
	writeOK(w, "", "/dashboard")
}

func (s *Server) handleRegisterResend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrEmailRequired)
		return
	}

	if err := s.flows.ResendRegistrationCode(r.Context(), req.Email, requestLang(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", "")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrIncorrectCredentials)
		return
	}

	result, err := s.flows.Login(r.Context(), req.Email, req.Password, requestLang(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result.TwoFactorRequired {
		writeOK(w, "", "/login/2fa")
		return
	}
	setSessionCookie(w, result.SessionToken)
	writeOK(w, "", "/dashboard")
}

func (s *Server) handleLogin2FA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrInvalidCode)
		return
	}

	token, err := s.flows.LoginSecondFactor(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	setSessionCookie(w, token)
	writeOK(w, "", "/dashboard")
}

func (s *Server) handleLogin2FAResend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrEmailRequired)
		return
	}

	if err := s.flows.ResendLoginCode(r.Context(), req.Email, requestLang(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", "")
}

func (s *Server) handleForgotSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrEmailRequired)
		return
	}

	if err := s.recovery.SendResetCode(r.Context(), req.Email, requestLang(r)); err != nil {
		writeError(w, r, err)
		return
	}
	// Success-shaped whether or not the address exists.
	writeOK(w, i18n.T(requestLang(r), "code_sent_if_exists"), "")
}

func (s *Server) handleForgotVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrInvalidCode)
		return
	}

	token, err := s.recovery.VerifyResetCode(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", "/forgot/new-password?token="+token)
}

func (s *Server) handleForgotNewPasswordForm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := s.recovery.ValidateResetToken(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", "")
}

func (s *Server) handleForgotNewPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrLinkExpired)
		return
	}

	if err := s.recovery.CompleteReset(r.Context(), req.Token, req.Password, req.PasswordConfirm); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", "/login")
}

func (s *Server) handleSetLang(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lang string `json:"lang"`
	}
	if err := decodeBody(r, &req); err != nil || !i18n.Supported(req.Lang) {
		writeOK(w, "", "")
		return
	}
	setLangCookie(w, req.Lang)
	writeOK(w, "", "")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.flows.Logout(r.Context(), currentToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	clearSessionCookie(w)
	writeOK(w, "", "/login")
}

func (s *Server) handleChangePasswordSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrPasswordEmpty)
		return
	}

	err := s.recovery.StartPasswordChange(r.Context(), currentUser(r), req.Password, req.PasswordConfirm, requestLang(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", "")
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code            string `json:"code"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrInvalidCode)
		return
	}

	err := s.recovery.ConfirmPasswordChange(r.Context(), currentUser(r), currentToken(r), req.Code, req.Password, req.PasswordConfirm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", "")
}

// parseSlot maps the wire slot name to the domain slot.
func parseSlot(name string) (auth.Slot, bool) {
	switch name {
	case "primary":
		return auth.SlotPrimary, true
	case "backup":
		return auth.SlotBackup, true
	default:
		return 0, false
	}
}

func (s *Server) handleEmailAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slot  string `json:"slot"`
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrEmailRequired)
		return
	}
	slot, ok := parseSlot(req.Slot)
	if !ok {
		writeError(w, r, auth.ErrEmailRequired)
		return
	}

	if err := s.accounts.AssignSlot(r.Context(), currentUser(r), slot, req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", "")
}

func (s *Server) handleEmailSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slot string `json:"slot"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrEmailRequired)
		return
	}
	slot, ok := parseSlot(req.Slot)
	if !ok {
		writeError(w, r, auth.ErrEmailRequired)
		return
	}

	if err := s.accounts.SendSlotCode(r.Context(), currentUser(r), slot, requestLang(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", "")
}

func (s *Server) handleEmailConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slot string `json:"slot"`
		Code string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrInvalidCode)
		return
	}
	slot, ok := parseSlot(req.Slot)
	if !ok {
		writeError(w, r, auth.ErrInvalidCode)
		return
	}

	if err := s.accounts.ConfirmSlot(r.Context(), currentUser(r), slot, req.Code); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", "")
}

func (s *Server) handleEmailDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slot string `json:"slot"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, auth.ErrCannotDeleteLastEmail)
		return
	}
	slot, ok := parseSlot(req.Slot)
	if !ok {
		writeError(w, r, auth.ErrCannotDeleteLastEmail)
		return
	}

	if err := s.accounts.DeleteSlot(r.Context(), currentUser(r), slot); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", "")
}
