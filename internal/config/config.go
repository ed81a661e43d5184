package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service        ServiceConfig        `yaml:"service"`
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Log            LogConfig            `yaml:"log"`
	JWT            JWTConfig            `yaml:"jwt"`
	Crypto         CryptoConfig         `yaml:"crypto"`
	Workflow       WorkflowConfig       `yaml:"workflow"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/payments.yaml"
	}

	// Ensure absolute path
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	// Read config file
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets may come from the environment instead of the file
	if v := os.Getenv("COINGATE_API_KEY"); v != "" {
		cfg.Crypto.APIKey = v
	}
	if v := os.Getenv("COINGATE_WEBHOOK_SECRET"); v != "" {
		cfg.Crypto.WebhookSecret = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fails fast on a configuration the service cannot run with.
// A half-configured crypto-payment feature or an unspecified workflow engine
// is a boot error, never a silent fallback.
func (c *Config) Validate() error {
	if c.Crypto.Enabled {
		if c.Crypto.APIKey == "" {
			return errors.New("crypto payments enabled but crypto.api_key is not set")
		}
		if c.Crypto.WebhookSecret == "" {
			return errors.New("crypto payments enabled but crypto.webhook_secret is not set")
		}
		if c.Crypto.SignatureHeader == "" {
			return errors.New("crypto payments enabled but crypto.signature_header is not set")
		}
	}

	switch c.Workflow.Engine {
	case WorkflowEngineMemory:
	case "":
		return errors.New("workflow.engine must be set explicitly")
	default:
		return fmt.Errorf("unknown workflow engine: %s", c.Workflow.Engine)
	}

	if c.Reconciliation.Enabled && c.Reconciliation.Schedule == "" {
		return errors.New("reconciliation enabled but reconciliation.schedule is not set")
	}

	return nil
}
