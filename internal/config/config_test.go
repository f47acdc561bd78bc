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
	cfg, err := Load(New(""))
	require.NoError(t, err)

	assert.Equal(t, "", cfg.CatalogPath)
	assert.Equal(t, "secrets.yaml", cfg.SecretsPath)
	assert.Equal(t, []string{".env"}, cfg.EnvFiles)
	assert.Equal(t, "OPENAI", cfg.Default.Provider)
	assert.Equal(t, "openai", cfg.Default.APIType)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Connect)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Read)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unifiedai.yaml")
	content := `
catalog_path: /etc/providers.yaml
default:
  provider: OPENROUTER
  config_index: 2
  api_type: requests
timeouts:
  connect: 5s
  read: 20s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("UNIFIEDAI_TIMEOUTS_READ", "45s")

	cfg, err := Load(New(path))
	require.NoError(t, err)

	assert.Equal(t, "/etc/providers.yaml", cfg.CatalogPath)
	assert.Equal(t, "OPENROUTER", cfg.Default.Provider)
	assert.Equal(t, 2, cfg.Default.ConfigIndex)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Connect)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Read, "env beats file")

	tt := cfg.TransportTimeouts()
	assert.Equal(t, 5*time.Second, tt.Connect)
}

func TestLoad_ValidationErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unifiedai.yaml")
	content := `
default:
  config_index: -1
timeouts:
  connect: 0s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := Load(New(path))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Problems, 2)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(New(filepath.Join(t.TempDir(), "absent.yaml")))
	var cErr *ConfigError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "read", cErr.Op)
}
