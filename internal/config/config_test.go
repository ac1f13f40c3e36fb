package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "localhost", cfg.Server.Name)
	assert.Equal(t, "IRCHive", cfg.Server.Network)
	assert.Equal(t, "0.0.0.0:6667", cfg.GetListenAddress())
	assert.Equal(t, "127.0.0.1:8080", cfg.GetAdminListenAddress())
	assert.False(t, cfg.Admin.Enabled)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  name: irc.example.org
  port: 7000
  password: hunter2
admin:
  enabled: true
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "irc.example.org", cfg.Server.Name)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "hunter2", cfg.Server.Password)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, "127.0.0.1:9090", cfg.GetAdminListenAddress())

	// Values the file omits keep their defaults
	assert.Equal(t, "IRCHive", cfg.Server.Network)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
name = "irc.example.org"
port = 7000
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "irc.example.org", cfg.Server.Name)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"server": {"name": "irc.example.org", "port": 7000}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "irc.example.org", cfg.Server.Name)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("IRCHIVE_SERVER_NAME", "irc.env.org")
	t.Setenv("IRCHIVE_PORT", "6697")
	t.Setenv("IRCHIVE_ADMIN_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "irc.env.org", cfg.Server.Name)
	assert.Equal(t, 6697, cfg.Server.Port)
	assert.True(t, cfg.Admin.Enabled)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0o644))
	t.Setenv("IRCHIVE_PORT", "8000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}
