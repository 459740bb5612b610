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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "port: 8080\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Contains(t, cfg.DSN, "decidepage")
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 120*time.Second, cfg.ExtractTimeout())
	assert.Equal(t, 180*time.Second, cfg.RenderTimeout())
	assert.Equal(t, 60*time.Second, cfg.QueryTimeout())
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
port: 3020
env: production
jwt_secret: s3cret
allowed_origins:
  - https://app.example.com
database:
  host: db.internal
  user: decide
  password: pw
  name: decide_prod
redis:
  host: cache.internal
  db: 2
ai:
  providers:
    - id: main
      type: Anthropic
      api_key: key
      default_model: claude-sonnet-4-5
      enabled: true
  extract_model:
    provider_id: main
    model: claude-sonnet-4-5
pipeline:
  render_timeout_sec: 300
s3:
  enable: true
  bucket: pages
  region: us-east-1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Contains(t, cfg.DSN, "db.internal")
	assert.Contains(t, cfg.DSN, "decide_prod")
	assert.Equal(t, "redis://cache.internal:6379/2", cfg.RedisURL)

	require.Len(t, cfg.AI.Providers, 1)
	require.NotNil(t, cfg.AI.ExtractModel)
	assert.Equal(t, "main", cfg.AI.ExtractModel.ProviderID)
	assert.Nil(t, cfg.AI.RenderModel)

	assert.Equal(t, 300*time.Second, cfg.RenderTimeout())
	assert.Equal(t, 120*time.Second, cfg.ExtractTimeout())

	assert.True(t, cfg.S3.Enable)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "prot: 8080\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	path := writeConfig(t, "port: 99999\n")
	_, err := Load(path)
	require.Error(t, err)
}
