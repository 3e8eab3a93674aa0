// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(f)
	return f
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/accountd")

	cfg, err := Load("", newFlags())
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/accountd", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.HTTP.AllowedOrigins)
	assert.Empty(t, cfg.HTTP.TLSCert)
	assert.Empty(t, cfg.HTTP.TLSKey)
	assert.Equal(t, "127.0.0.1:9100", cfg.Observability.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "localhost", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "ethereum", cfg.Wallet.Chain)
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load("", newFlags())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL")
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://file-host/accountd
http:
  addr: ":9999"
log:
  level: debug
`), 0o600))

	flags := newFlags()
	require.NoError(t, flags.Set("http.addr", ":7777"))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file-host/accountd", cfg.DatabaseURL)
	assert.Equal(t, ":7777", cfg.HTTP.Addr, "a set flag wins over the file")
	assert.Equal(t, "debug", cfg.Log.Level, "an unset flag keeps the file value")
}

func TestLoad_EnvironmentSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/accountd")
	t.Setenv("ACCOUNTD_SMTP_PASSWORD", "hunter2")
	t.Setenv("ACCOUNTD_WALLET_SEAL_KEY", "deadbeef")

	cfg, err := Load("", newFlags())
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-host/accountd", cfg.DatabaseURL)
	assert.Equal(t, "hunter2", cfg.SMTP.Password)
	assert.Equal(t, "deadbeef", cfg.Wallet.SealKey)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/accountd")

	_, err := Load("/nonexistent/config.yaml", newFlags())
	assert.Error(t, err)
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/accountd")

	flags := newFlags()
	require.NoError(t, flags.Set("http.allowed_origins", "https://app.example.com,https://admin.example.com"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"https://app.example.com", "https://admin.example.com"},
		cfg.HTTP.AllowedOrigins)
}
