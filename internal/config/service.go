package config

import "time"

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	ClientURL   string `yaml:"client_url"`
}

// CryptoConfig configures the crypto payment provider integration. The
// signature header name is provider documentation, not an assumption, so it
// is configured rather than hardcoded.
type CryptoConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Provider        string `yaml:"provider"`
	APIKey          string `yaml:"api_key"`
	WebhookSecret   string `yaml:"webhook_secret"`
	BaseURL         string `yaml:"base_url"`
	CallbackURL     string `yaml:"callback_url"`
	SignatureHeader string `yaml:"signature_header"`
}

// Supported workflow engines. Selection is an explicit startup decision.
const (
	WorkflowEngineMemory = "memory"
)

type WorkflowConfig struct {
	Engine string `yaml:"engine"`

	// Per-step retry policy
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval"`
	RetryMaxAttempts     int           `yaml:"retry_max_attempts"`
}

type ReconciliationConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Schedule     string        `yaml:"schedule"`
	PendingAfter time.Duration `yaml:"pending_after"`
	BatchSize    int           `yaml:"batch_size"`
}
