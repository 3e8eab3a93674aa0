// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/wildboar/accountd/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// resolveConfigFile returns the --config flag value, falling back to
// config.yaml in the XDG config directory when that file exists.
func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	return xdg.DefaultConfigFile()
}

// NewRootCmd creates the root command for the accountd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accountd",
		Short: "accountd - account and authentication service",
		Long: `accountd is the account service: registration with email
verification, login with second-factor codes, password reset and
change, and email-slot management.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
