package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "~/.wf", cfg.StoreDir)
	assert.Equal(t, 1000, cfg.MaxLoopIterations)
	assert.NotNil(t, cfg.Hosts)
	assert.Empty(t, cfg.Hosts)
	assert.True(t, cfg.Sync.AutoPull)
	assert.Equal(t, 4000, cfg.Assist.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.Assist.Timeout)
	assert.Equal(t, "auto", cfg.Output.Color)
	assert.True(t, cfg.Output.Timing)
	assert.Equal(t, "normal", cfg.Output.Verbosity)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
version: 1
store_dir: /tmp/wf-test-store
shell: zsh -c
max_loop_iterations: 50
approval_patterns:
  - "terraform\\s+destroy"
hosts:
  build:
    ssh: [dev@build.example.com, build]
    dir: ${HOME}/work
default_host: build
sync:
  auto_pull: false
  overwrite: true
assist:
  model: claude-3-opus-20240229
  max_tokens: 2000
  temperature: 0.2
  timeout: 30s
output:
  color: never
  timing: false
  verbosity: verbose
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/wf-test-store", cfg.StoreDir)
	assert.Equal(t, "zsh -c", cfg.Shell)
	assert.Equal(t, 50, cfg.MaxLoopIterations)
	assert.Equal(t, []string{`terraform\s+destroy`}, cfg.ApprovalPatterns)

	host, ok := cfg.Hosts["build"]
	require.True(t, ok)
	assert.Equal(t, []string{"dev@build.example.com", "build"}, host.SSH)
	// Remote dirs keep ~ for the remote shell.
	assert.Equal(t, "~/work", host.Dir)
	assert.Equal(t, "build", cfg.DefaultHost)

	assert.False(t, cfg.Sync.AutoPull)
	assert.True(t, cfg.Sync.Overwrite)

	assert.Equal(t, 2000, cfg.Assist.MaxTokens)
	assert.InDelta(t, 0.2, cfg.Assist.Temperature, 0.001)
	assert.Equal(t, 30*time.Second, cfg.Assist.Timeout)

	assert.Equal(t, "never", cfg.Output.Color)
	assert.False(t, cfg.Output.Timing)
	assert.Equal(t, "verbose", cfg.Output.Verbosity)
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	path := writeConfig(t, "version: 1\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".wf"), cfg.StoreDir)
	assert.Equal(t, 1000, cfg.MaxLoopIterations)
	assert.True(t, cfg.Sync.AutoPull)
	assert.Equal(t, "claude-3-opus-20240229", cfg.Assist.Model)
	assert.Equal(t, 4000, cfg.Assist.MaxTokens)
	assert.Equal(t, "auto", cfg.Output.Color)
	assert.True(t, cfg.Output.Timing)
}

func TestLoad_ExpandsTildeInStoreDir(t *testing.T) {
	path := writeConfig(t, "store_dir: ~/custom-wf\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "custom-wf"), cfg.StoreDir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "hosts: [not: a: map\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "max_loop_iterations: -5\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_loop_iterations")
}

func TestFind_ExplicitPathWins(t *testing.T) {
	path := writeConfig(t, "version: 1\n")

	found, err := Find(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestFind_ExplicitPathMissing(t *testing.T) {
	_, err := Find(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadOrDefault_NoConfig(t *testing.T) {
	// Point HOME at an empty directory so no global config is found.
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, 1000, cfg.MaxLoopIterations)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteDefault(path))

	// The template must itself be a loadable config.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, 1000, cfg.MaxLoopIterations)
	assert.True(t, cfg.Sync.AutoPull)

	// Refuses to clobber.
	err = WriteDefault(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
