// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wildboar/accountd/internal/store"
)

// databaseURL resolves the connection string from the flag or the
// environment.
func databaseURL(cmd *cobra.Command) (string, error) {
	if url, _ := cmd.Flags().GetString("database_url"); url != "" {
		return url, nil
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	return "", oops.Code("CONFIG_INVALID").
		Errorf("database URL is required (flag --database_url or DATABASE_URL)")
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run all pending database migrations against the PostgreSQL database.`,
		RunE:  runMigrate,
	}
	cmd.Flags().String("database_url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}

	migrator, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is not actionable here

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
