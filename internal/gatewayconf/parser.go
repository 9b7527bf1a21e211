package gatewayconf

// Package gatewayconf provides providers.yaml parsing functionality.

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ProvidersConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
	Retry     RetryConfig      `yaml:"retry"`
}

type ProviderConfig struct {
	Name           string `yaml:"name"`
	DisplayName    string `yaml:"display_name"`
	Enabled        bool   `yaml:"enabled"`
	MinOrderAmount int64  `yaml:"min_order_amount"`
	MaxOrderAmount int64  `yaml:"max_order_amount"`
}

type RetryConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`
	BackoffSeconds int `yaml:"backoff_seconds"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*ProvidersConfig, error) {
	var config ProvidersConfig
	if err := yaml.Unmarshal(content, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &config, nil
}

func (p *Parser) ParseFromString(content string) (*ProvidersConfig, error) {
	return p.Parse([]byte(content))
}

func (p *Parser) ParseFile(path string) (*ProvidersConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	return p.Parse(content)
}

// Default returns the routing policy used when no providers file is
// configured: every gateway enabled with no amount bounds and a modest
// follow-up retry budget.
func Default() *ProvidersConfig {
	return &ProvidersConfig{
		Providers: []ProviderConfig{
			{Name: "vnpay", DisplayName: "VNPAY", Enabled: true},
			{Name: "momo", DisplayName: "MoMo", Enabled: true},
			{Name: "cod", DisplayName: "Cash on delivery", Enabled: true},
		},
		Retry: RetryConfig{MaxAttempts: 5, BackoffSeconds: 30},
	}
}

// Provider returns the entry for name, or nil when the file does not
// mention it.
func (c *ProvidersConfig) Provider(name string) *ProviderConfig {
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i]
		}
	}
	return nil
}

// Allows reports whether the named provider accepts an order of the given
// amount under this policy.
func (c *ProvidersConfig) Allows(name string, amount int64) bool {
	provider := c.Provider(name)
	if provider == nil || !provider.Enabled {
		return false
	}
	if provider.MinOrderAmount > 0 && amount < provider.MinOrderAmount {
		return false
	}
	if provider.MaxOrderAmount > 0 && amount > provider.MaxOrderAmount {
		return false
	}
	return true
}
