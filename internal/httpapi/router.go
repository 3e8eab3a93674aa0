// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wildboar/accountd/internal/auth"
)

// Server holds the flow services behind the HTTP surface.
type Server struct {
	flows    *auth.Service
	recovery *auth.RecoveryService
	accounts *auth.AccountService
	sessions *auth.SessionService
}

// NewServer creates the HTTP server facade.
func NewServer(
	flows *auth.Service,
	recovery *auth.RecoveryService,
	accounts *auth.AccountService,
	sessions *auth.SessionService,
) *Server {
	return &Server{
		flows:    flows,
		recovery: recovery,
		accounts: accounts,
		sessions: sessions,
	}
}

// Router builds the chi router with the full endpoint set.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
		}))
	}

	r.Post("/register", s.handleRegister)
	r.Post("/register/confirm", s.handleRegisterConfirm)
	r.Post("/register/resend-code", s.handleRegisterResend)

	r.Post("/login", s.handleLogin)
	r.Post("/login/2fa", s.handleLogin2FA)
	r.Post("/login/2fa/resend", s.handleLogin2FAResend)

	r.Post("/forgot/send-code", s.handleForgotSendCode)
	r.Post("/forgot/verify", s.handleForgotVerify)
	r.Get("/forgot/new-password", s.handleForgotNewPasswordForm)
	r.Post("/forgot/new-password", s.handleForgotNewPassword)

	r.Post("/lang", s.handleSetLang)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/logout", s.handleLogout)
		r.Post("/settings/security/send-code", s.handleChangePasswordSendCode)
		r.Post("/settings/security/change-password", s.handleChangePassword)
		r.Post("/settings/security/emails/send-code", s.handleEmailSendCode)
		r.Post("/settings/security/emails/confirm", s.handleEmailConfirm)
		r.Post("/settings/security/emails/assign", s.handleEmailAssign)
		r.Post("/settings/security/emails/delete", s.handleEmailDelete)
	})

	return r
}
