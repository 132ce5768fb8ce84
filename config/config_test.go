package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig("")
	assert.Equal(t, 3001, cfg.Web.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 30, cfg.Gateway.PairTimeoutSec)
	assert.Equal(t, 3, cfg.Gateway.ReconnectDelaySec)
	assert.NotEmpty(t, cfg.Gateway.SessionDir)
}

func TestLoadConfig_YamlOverride(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "wagate.yml")
	content := `
web:
  port: 8088
database:
  type: sqlite
gateway:
  max_reconnects: 5
`
	require.NoError(t, os.WriteFile(cfile, []byte(content), 0o644))

	cfg := LoadConfig(cfile)
	assert.Equal(t, 8088, cfg.Web.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 5, cfg.Gateway.MaxReconnects)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("WAGATE_WEB_PORT", "9090")
	t.Setenv("WAGATE_SESSION_DIR", "/tmp/wagate-sessions")
	t.Setenv("WAGATE_MAX_RECONNECTS", "0")

	cfg := LoadConfig("")
	assert.Equal(t, 9090, cfg.Web.Port)
	assert.Equal(t, "/tmp/wagate-sessions", cfg.Gateway.SessionDir)
	assert.Equal(t, 0, cfg.Gateway.MaxReconnects)
}

func TestLoadConfig_SessionDirFallsBackToWorkdir(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "wagate.yml")
	content := `
system:
  workdir: /opt/wagate
gateway:
  session_dir: ""
`
	require.NoError(t, os.WriteFile(cfile, []byte(content), 0o644))

	cfg := LoadConfig(cfile)
	assert.Equal(t, filepath.Join("/opt/wagate", "sessions"), cfg.Gateway.SessionDir)
}

func TestLoadConfig_DoesNotMutateDefaults(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "wagate.yml")
	require.NoError(t, os.WriteFile(cfile, []byte("web:\n  port: 7777\n"), 0o644))

	_ = LoadConfig(cfile)
	assert.Equal(t, 3001, DefaultAppConfig.Web.Port)
}
