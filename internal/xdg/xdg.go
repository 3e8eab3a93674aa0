// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package xdg resolves XDG Base Directory paths for accountd.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "accountd"

// ConfigDir returns the XDG config directory for accountd.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the path of config.yaml under ConfigDir when
// the file exists, or "" when it does not.
func DefaultConfigFile() string {
	path := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
