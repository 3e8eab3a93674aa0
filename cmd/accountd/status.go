// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/wildboar/accountd/internal/store"
)

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database schema status",
		Long:  `Show the current migration version, dirty state, and pending migrations.`,
		RunE:  runStatus,
	}
	cmd.Flags().String("database_url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}

	migrator, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is not actionable here

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}

	if version == 0 {
		cmd.Println("Schema version: none (no migrations applied)")
	} else {
		name, err := store.MigrationName(version)
		if err != nil {
			return err
		}
		if name != "" {
			cmd.Printf("Schema version: %d (%s)\n", version, name)
		} else {
			cmd.Printf("Schema version: %d\n", version)
		}
	}
	if dirty {
		cmd.Println("WARNING: schema is dirty; a migration failed partway through")
	}

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	cmd.Printf("Pending migrations: %d\n", len(pending))
	for _, v := range pending {
		name, err := store.MigrationName(v)
		if err != nil {
			return err
		}
		cmd.Printf("  %06d %s\n", v, name)
	}
	return nil
}
