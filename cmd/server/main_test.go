package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServeFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "serve"}
	addServeFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "Smart Slides version dev")
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, path, err := loadConfig(newServeFlags(t, "--addr", ":7777", "--dev"))
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.True(t, cfg.Logger.Development)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("SERVER_ADDR", "")
	path := filepath.Join(t.TempDir(), "smart-slides.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":6000\"\n"), 0o600))

	cfg, gotPath, err := loadConfig(newServeFlags(t, "--config", path, "--log-level", "debug"))
	require.NoError(t, err)
	assert.Equal(t, path, gotPath)
	assert.Equal(t, ":6000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logger.Level)
}
