package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Crypto: CryptoConfig{
			Enabled:         true,
			Provider:        "coingate",
			APIKey:          "api-key",
			WebhookSecret:   "webhook-secret",
			SignatureHeader: "X-CoinGate-Signature",
		},
		Workflow: WorkflowConfig{Engine: WorkflowEngineMemory},
		Reconciliation: ReconciliationConfig{
			Enabled:  true,
			Schedule: "@every 5m",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"crypto disabled needs no secrets", func(c *Config) {
			c.Crypto = CryptoConfig{Enabled: false}
		}, ""},
		{"crypto without api key", func(c *Config) {
			c.Crypto.APIKey = ""
		}, "crypto.api_key"},
		{"crypto without webhook secret", func(c *Config) {
			c.Crypto.WebhookSecret = ""
		}, "crypto.webhook_secret"},
		{"crypto without signature header", func(c *Config) {
			c.Crypto.SignatureHeader = ""
		}, "crypto.signature_header"},
		{"workflow engine unset", func(c *Config) {
			c.Workflow.Engine = ""
		}, "workflow.engine"},
		{"unknown workflow engine", func(c *Config) {
			c.Workflow.Engine = "temporal"
		}, "unknown workflow engine"},
		{"reconciliation without schedule", func(c *Config) {
			c.Reconciliation.Schedule = ""
		}, "reconciliation.schedule"},
		{"reconciliation disabled needs no schedule", func(c *Config) {
			c.Reconciliation = ReconciliationConfig{Enabled: false}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
service:
  name: payments
  environment: test
crypto:
  enabled: true
  provider: coingate
  api_key: file-api-key
  webhook_secret: file-webhook-secret
  signature_header: X-CoinGate-Signature
  callback_url: https://payments.ireva.test/webhooks/coingate
workflow:
  engine: memory
  retry_max_attempts: 4
reconciliation:
  enabled: true
  schedule: "@every 5m"
  batch_size: 50
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("COINGATE_API_KEY", "")
	t.Setenv("COINGATE_WEBHOOK_SECRET", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "payments", cfg.Service.Name)
	assert.Equal(t, "file-api-key", cfg.Crypto.APIKey)
	assert.Equal(t, WorkflowEngineMemory, cfg.Workflow.Engine)
	assert.Equal(t, 4, cfg.Workflow.RetryMaxAttempts)
	assert.Equal(t, "@every 5m", cfg.Reconciliation.Schedule)
}

func TestLoadConfig_EnvironmentOverridesSecrets(t *testing.T) {
	path := writeConfigFile(t, `
crypto:
  enabled: true
  api_key: file-api-key
  webhook_secret: file-webhook-secret
  signature_header: X-CoinGate-Signature
workflow:
  engine: memory
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("COINGATE_API_KEY", "env-api-key")
	t.Setenv("COINGATE_WEBHOOK_SECRET", "env-webhook-secret")
	t.Setenv("JWT_SECRET", "env-jwt-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "env-api-key", cfg.Crypto.APIKey)
	assert.Equal(t, "env-webhook-secret", cfg.Crypto.WebhookSecret)
	assert.Equal(t, "env-jwt-secret", cfg.JWT.Secret)
}

func TestLoadConfig_InvalidConfigFailsAtBoot(t *testing.T) {
	path := writeConfigFile(t, `
crypto:
  enabled: true
  api_key: api-key
workflow:
  engine: memory
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("COINGATE_WEBHOOK_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crypto.webhook_secret")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Name:     "payments",
		User:     "payments",
		Password: "secret",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=payments password=secret dbname=payments sslmode=disable",
		cfg.DSN())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}
