// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/accountd", ConfigDir())
}

func TestConfigDir_HomeFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, "/home/tester/.config/accountd", ConfigDir())
}

func TestDefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.Empty(t, DefaultConfigFile(), "missing file resolves to empty")

	path := filepath.Join(dir, "accountd", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	assert.Equal(t, path, DefaultConfigFile())
}
