// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package httpapi exposes the account flows over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wildboar/accountd/internal/auth"
	"github.com/wildboar/accountd/internal/i18n"
	"github.com/wildboar/accountd/pkg/errutil"
)

// envelope is the response shape shared by every endpoint.
type envelope struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// writeOK responds with status "ok". message and redirect may be empty.
func writeOK(w http.ResponseWriter, message, redirect string) {
	writeJSON(w, http.StatusOK, envelope{Status: "ok", Message: message, Redirect: redirect})
}

// writeError maps a domain failure to an HTTP status and a localized
// message. Closed-set failures are 400 except the dependency and
// authentication classes; anything outside the set is a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	lang := requestLang(r)

	if errors.Is(err, auth.ErrNotAuthenticated) {
		writeJSON(w, http.StatusUnauthorized, envelope{
			Status:   "error",
			Redirect: "/login",
		})
		return
	}

	key, known := auth.MessageKey(err)
	if !known {
		errutil.LogError(slog.Default(), "internal error", err)
		writeJSON(w, http.StatusInternalServerError, envelope{
			Status:  "error",
			Message: i18n.T(lang, "internal_error"),
		})
		return
	}

	status := http.StatusBadRequest
	if errors.Is(err, auth.ErrSendFailed) || errors.Is(err, auth.ErrRegistrationFailed) {
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, envelope{
		Status:  "error",
		Message: i18n.T(lang, key),
	})
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close() //nolint:errcheck // nothing useful to do with the error
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}
