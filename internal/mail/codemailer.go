// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package mail

import (
	"bytes"
	"context"
	"embed"
	"html/template"

	"github.com/samber/oops"

	"github.com/wildboar/accountd/internal/auth"
	"github.com/wildboar/accountd/internal/i18n"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// subjectKeys maps a code purpose to its localized subject line key.
var subjectKeys = map[auth.Purpose]string{
	auth.PurposeRegistration:   "email_subject_registration",
	auth.PurposeLogin2FA:       "email_subject_login_2fa",
	auth.PurposeReset:          "email_subject_reset",
	auth.PurposePasswordChange: "email_subject_password_change",
}

// CodeMailer renders verification-code email and hands it to a Sender.
// Implements auth.CodeMailer.
type CodeMailer struct {
	sender Sender
	tmpl   *template.Template
}

// NewCodeMailer creates a CodeMailer over the embedded templates.
func NewCodeMailer(sender Sender) (*CodeMailer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, oops.Code("MAIL_TEMPLATE_FAILED").
			With("operation", "parse embedded templates").
			Wrap(err)
	}
	return &CodeMailer{sender: sender, tmpl: tmpl}, nil
}

// SendCode renders the code template in the user's language and sends it.
func (m *CodeMailer) SendCode(ctx context.Context, to string, purpose auth.Purpose, code, lang string) error {
	subjectKey, ok := subjectKeys[purpose]
	if !ok {
		return oops.Code("MAIL_INVALID_PURPOSE").Errorf("unknown purpose: %s", purpose)
	}
	subject := i18n.T(lang, subjectKey)

	var body bytes.Buffer
	err := m.tmpl.ExecuteTemplate(&body, "code.html.tmpl", map[string]string{
		"Title": subject,
		"Code":  code,
		"Note":  i18n.T(lang, "email_code_note"),
	})
	if err != nil {
		return oops.Code("MAIL_RENDER_FAILED").
			With("operation", "render code template").
			With("purpose", string(purpose)).
			Wrap(err)
	}

	return m.sender.Send(ctx, to, subject, body.String())
}

// Compile-time interface check.
var _ auth.CodeMailer = (*CodeMailer)(nil)
