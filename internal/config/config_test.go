package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NoFilesReturnsValidatedDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "./results", cfg.Output.BaseDir)
}

func TestLoad_FileOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment = "production"
[output]
base_dir = "/var/results"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "/var/results", cfg.Output.BaseDir)
}

func TestLoad_LaterFileWinsOverEarlier(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(base, []byte(`[output]
base_dir = "/base"
`), 0o644))
	require.NoError(t, os.WriteFile(override, []byte(`[output]
base_dir = "/override"
`), 0o644))

	cfg, err := Load(base, override)
	require.NoError(t, err)
	assert.Equal(t, "/override", cfg.Output.BaseDir)
}

func TestLoad_InvalidEnvironmentFailsValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.toml")
	require.NoError(t, os.WriteFile(path, []byte(`environment = "staging"`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestAppConfig_PollIntervalFallsBackOnBadValue(t *testing.T) {
	cfg := Default()
	cfg.Queue.PollInterval = "not-a-duration"
	assert.Equal(t, "2s", cfg.PollInterval().String())
}

func TestEnvOverride_OutputDir(t *testing.T) {
	t.Setenv("VALIDATION_ENGINE_OUTPUT_DIR", "/env-results")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/env-results", cfg.Output.BaseDir)
}
