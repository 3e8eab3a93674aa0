// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package httpapi

import (
	"context"
	"net/http"

	"github.com/wildboar/accountd/internal/auth"
)

type ctxKey int

const (
	ctxKeyUser ctxKey = iota
	ctxKeyToken
)

// requireSession resolves the session cookie and puts the user on the
// request context. An unresolvable session is an authentication gate,
// not an error: the client gets 401 with a login redirect.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		user, err := s.sessions.Resolve(r.Context(), token)
		if err != nil {
			clearSessionCookie(w)
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		ctx = context.WithValue(ctx, ctxKeyToken, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser returns the authenticated user placed by requireSession.
func currentUser(r *http.Request) *auth.User {
	user, _ := r.Context().Value(ctxKeyUser).(*auth.User)
	return user
}

// currentToken returns the session token placed by requireSession.
func currentToken(r *http.Request) string {
	token, _ := r.Context().Value(ctxKeyToken).(string)
	return token
}
