package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.License.HTTPTimeout)
	assert.Equal(t, 15*time.Minute, cfg.License.PullInterval)
	assert.Equal(t, 30*time.Minute, cfg.License.ResponseCacheTTL)
	assert.Equal(t, 10, cfg.License.GraceLimit)
	assert.Equal(t, 3, cfg.License.OCSPGraceLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.License.Instance, "instance defaults to the machine fingerprint")
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "licman.yaml")
	content := `
server:
  port: 9999
license:
  server_url: "https://license.example.com/pull/{{key}}/{{instance}}"
  instance: "inst-1"
  grace_limit: 5
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "https://license.example.com/pull/{{key}}/{{instance}}", cfg.License.ServerURL)
	assert.Equal(t, "inst-1", cfg.License.Instance)
	assert.Equal(t, 5, cfg.License.GraceLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset values still get defaults
	assert.Equal(t, 15*time.Second, cfg.License.HTTPTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "licman.yaml")
	require.NoError(t, os.WriteFile(path, []byte("license:\n  key: from-file\n"), 0o644))

	t.Setenv("LICMAN_LICENSE_KEY", "from-env")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.License.Key)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "licman.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\t this is not yaml"), 0o644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}
