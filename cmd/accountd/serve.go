// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wildboar/accountd/internal/auth"
	authpg "github.com/wildboar/accountd/internal/auth/postgres"
	"github.com/wildboar/accountd/internal/config"
	"github.com/wildboar/accountd/internal/httpapi"
	"github.com/wildboar/accountd/internal/logging"
	"github.com/wildboar/accountd/internal/mail"
	"github.com/wildboar/accountd/internal/observability"
	"github.com/wildboar/accountd/internal/store"
	tlscerts "github.com/wildboar/accountd/internal/tls"
	"github.com/wildboar/accountd/internal/wallet"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account service",
		Long:  `Start the HTTP API and the observability endpoints.`,
		RunE:  runServe,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(resolveConfigFile(), cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("accountd", version, cfg.Log.Format, cfg.Log.Level)
	slog.Info("starting accountd", "version", version, "commit", commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	server, err := buildServer(db, cfg)
	if err != nil {
		return err
	}

	obs := observability.NewServer(cfg.Observability.Addr, func() bool { return true })
	obsErrCh, err := obs.Start()
	if err != nil {
		return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Router(cfg.HTTP.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS := cfg.HTTP.TLSCert != "" && cfg.HTTP.TLSKey != ""
	if useTLS {
		if err := tlscerts.EnsureServerCert(cfg.HTTP.TLSCert, cfg.HTTP.TLSKey, nil); err != nil {
			return err
		}
	}

	httpErrCh := make(chan error, 1)
	go func() {
		slog.Info("http server started", "addr", cfg.HTTP.Addr, "tls", useTLS)
		var serveErr error
		if useTLS {
			serveErr = httpSrv.ListenAndServeTLS(cfg.HTTP.TLSCert, cfg.HTTP.TLSKey)
		} else {
			serveErr = httpSrv.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-httpErrCh:
		slog.Error("http server failed", "error", err)
	case err := <-obsErrCh:
		slog.Error("observability server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	if err := obs.Stop(shutdownCtx); err != nil {
		slog.Error("observability server shutdown failed", "error", err)
	}

	slog.Info("accountd stopped")
	return nil
}

// buildServer wires repositories, services, and the HTTP facade.
func buildServer(db *store.DB, cfg *config.Config) (*httpapi.Server, error) {
	users := authpg.NewUserRepository(db)
	codeRepo := authpg.NewCodeRepository(db)
	sessionRepo := authpg.NewSessionRepository(db)
	resetRepo := authpg.NewResetRepository(db)

	sender := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	mailer, err := mail.NewCodeMailer(sender)
	if err != nil {
		return nil, err
	}

	wallets, err := wallet.NewProvisioner(db, cfg.Wallet.Chain, cfg.Wallet.SealKey)
	if err != nil {
		return nil, err
	}

	hasher := auth.NewArgon2idHasher()
	codes := auth.NewCodeService(codeRepo, db)
	sessions := auth.NewSessionService(sessionRepo, users, db)
	accounts := auth.NewAccountService(users, codes, mailer, db)
	flows := auth.NewService(users, codes, sessions, hasher, mailer, wallets, db)
	recovery := auth.NewRecoveryService(users, codes, sessions, resetRepo, hasher, mailer, db)

	return httpapi.NewServer(flows, recovery, accounts, sessions), nil
}
