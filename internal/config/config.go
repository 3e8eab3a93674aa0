// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package config loads service configuration from an optional YAML file,
// command-line flags, and environment variables for secrets.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full service configuration.
type Config struct {
	DatabaseURL string `koanf:"database_url"`

	HTTP struct {
		Addr           string   `koanf:"addr"`
		AllowedOrigins []string `koanf:"allowed_origins"`
		TLSCert        string   `koanf:"tls_cert"`
		TLSKey         string   `koanf:"tls_key"`
	} `koanf:"http"`

	Observability struct {
		Addr string `koanf:"addr"`
	} `koanf:"observability"`

	Log struct {
		Format string `koanf:"format"`
		Level  string `koanf:"level"`
	} `koanf:"log"`

	SMTP struct {
		Host     string `koanf:"host"`
		Port     int    `koanf:"port"`
		Username string `koanf:"username"`
		Password string `koanf:"password"`
		From     string `koanf:"from"`
	} `koanf:"smtp"`

	Wallet struct {
		Chain   string `koanf:"chain"`
		SealKey string `koanf:"seal_key"`
	} `koanf:"wallet"`
}

// RegisterFlags declares the config flags with their defaults on a
// cobra command's flag set. Flag names use dots matching the koanf
// paths.
func RegisterFlags(f *pflag.FlagSet) {
	f.String("database_url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	f.String("http.addr", ":8080", "HTTP listen address")
	f.StringSlice("http.allowed_origins", nil, "CORS allowed origins")
	f.String("http.tls_cert", "", "TLS certificate file; served over plain HTTP when empty")
	f.String("http.tls_key", "", "TLS private key file")
	f.String("observability.addr", "127.0.0.1:9100", "metrics and health listen address")
	f.String("log.format", "json", "log format: json or text")
	f.String("log.level", "info", "log level: debug, info, warn, error")
	f.String("smtp.host", "localhost", "SMTP server host")
	f.Int("smtp.port", 587, "SMTP server port")
	f.String("smtp.username", "", "SMTP username")
	f.String("smtp.from", "no-reply@localhost", "From address for outgoing mail")
	f.String("wallet.chain", "ethereum", "chain recorded on provisioned wallets")
}

// Load reads configuration: the YAML file first when given, then flags
// (set flags win over file values), then environment variables for
// secrets.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("operation", "load config file").
				With("path", configFile).
				Wrap(err)
		}
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_FLAGS_FAILED").
			With("operation", "load flags").
			Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	// Secrets come from the environment, never from flags where they
	// would leak into process listings.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("ACCOUNTD_SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("ACCOUNTD_WALLET_SEAL_KEY"); v != "" {
		cfg.Wallet.SealKey = v
	}

	if cfg.DatabaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").
			Errorf("database URL is required (flag --database_url or DATABASE_URL)")
	}

	return &cfg, nil
}
