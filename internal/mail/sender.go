// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package mail renders and delivers transactional email.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/samber/oops"
)

// Sender delivers a rendered message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPConfig configures the SMTP sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender implements Sender over SMTP with PLAIN auth and STARTTLS
// as negotiated by the server.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers one message. The context deadline is not enforced by
// net/smtp itself; callers bound the flow at the HTTP layer.
func (s *SMTPSender) Send(_ context.Context, to, subject, htmlBody string) error {
	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n",
		s.cfg.From, to, subject,
	)
	message := []byte(headers + htmlBody)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, message); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("operation", "smtp send").
			With("host", s.cfg.Host).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ Sender = (*SMTPSender)(nil)
