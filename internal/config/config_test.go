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
	path := filepath.Join(t.TempDir(), "shipper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
endpoint: http://loki:3100/loki/api/v1/push
app: shop
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.App)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5, cfg.FlushIntervalSeconds)
	assert.Equal(t, 10000, cfg.MaxBufferSize)
	assert.Equal(t, "none", cfg.Auth.Method)
	assert.Equal(t, "none", cfg.Persistence.Backend)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 500, cfg.Retry.BaseDelayMS)
	assert.False(t, cfg.Tail.Enabled)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
endpoint: http://loki:3100/loki/api/v1/push
app: shop
environment: staging
batch_size: 25
flush_interval_seconds: 2
max_buffer_size: 500
compression: true
extra_labels:
  team: payments
auth:
  method: basic
  username: grafana
  password: secret
persistence:
  backend: file
  path: /var/lib/shipper/pending.json
retry:
  max_retries: 5
  base_delay_ms: 200
  max_delay_ms: 10000
  jitter_factor: 0.1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.True(t, cfg.Compression)
	assert.Equal(t, map[string]string{"team": "payments"}, cfg.ExtraLabels)
	assert.Equal(t, "basic", cfg.Auth.Method)
	assert.Equal(t, "file", cfg.Persistence.Backend)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
}

func TestLoad_LegacyRetryScalarCollapses(t *testing.T) {
	path := writeConfig(t, `
endpoint: http://loki:3100/loki/api/v1/push
max_retries: 7
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retry.MaxRetries)
	// Structured defaults for delays stay in place.
	assert.Equal(t, 500, cfg.Retry.BaseDelayMS)
}

func TestLoad_StructuredRetryWinsOverLegacy(t *testing.T) {
	path := writeConfig(t, `
endpoint: http://loki:3100/loki/api/v1/push
max_retries: 7
retry:
  max_retries: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := map[string]string{
		"missing endpoint": `
app: shop
`,
		"zero batch size": `
endpoint: http://loki:3100/loki/api/v1/push
batch_size: 0
`,
		"buffer smaller than batch": `
endpoint: http://loki:3100/loki/api/v1/push
batch_size: 50
max_buffer_size: 10
`,
		"unknown auth method": `
endpoint: http://loki:3100/loki/api/v1/push
auth:
  method: kerberos
`,
		"persistence without path": `
endpoint: http://loki:3100/loki/api/v1/push
persistence:
  backend: sqlite
`,
		"tail without root": `
endpoint: http://loki:3100/loki/api/v1/push
tail:
  enabled: true
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestEngineConfig_Assembly(t *testing.T) {
	path := writeConfig(t, `
endpoint: http://loki:3100/loki/api/v1/push
app: shop
auth:
  method: bearer
  token: tok123
retry:
  max_retries: 4
  base_delay_ms: 250
  max_delay_ms: 8000
  jitter_factor: 0.3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	engineConfig := cfg.EngineConfig(nil, nil)
	assert.NoError(t, engineConfig.Validate())
	assert.Equal(t, 5*time.Second, engineConfig.FlushInterval)
	assert.Equal(t, 4, engineConfig.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, engineConfig.Retry.BaseDelay)
	assert.Equal(t, 8*time.Second, engineConfig.Retry.MaxDelay)
	assert.InDelta(t, 0.3, engineConfig.Retry.JitterFactor, 1e-9)
	assert.Equal(t, map[string]string{"Authorization": "Bearer tok123"}, engineConfig.Auth.Headers())
}
