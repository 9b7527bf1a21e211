package gatewayconf

// Package gatewayconf provides configuration validation.

import (
	"fmt"
	"strings"
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

var knownProviders = map[string]bool{
	"vnpay": true,
	"momo":  true,
	"cod":   true,
}

func (v *Validator) Validate(config *ProvidersConfig) error {
	if len(config.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}

	names := make(map[string]bool)
	anyEnabled := false
	for i, provider := range config.Providers {
		if err := v.validateProvider(&provider); err != nil {
			return fmt.Errorf("provider %d validation failed: %w", i, err)
		}

		if names[provider.Name] {
			return fmt.Errorf("duplicate provider: %s", provider.Name)
		}
		names[provider.Name] = true

		if provider.Enabled {
			anyEnabled = true
		}
	}

	if !anyEnabled {
		return fmt.Errorf("at least one provider must be enabled")
	}

	if err := v.validateRetry(&config.Retry); err != nil {
		return fmt.Errorf("retry validation failed: %w", err)
	}

	return nil
}

func (v *Validator) validateProvider(provider *ProviderConfig) error {
	name := strings.TrimSpace(provider.Name)
	if name == "" {
		return fmt.Errorf("provider name is required")
	}

	if !knownProviders[name] {
		return fmt.Errorf("unknown provider: %s", name)
	}

	if provider.MinOrderAmount < 0 {
		return fmt.Errorf("min order amount must be zero or positive")
	}

	if provider.MaxOrderAmount < 0 {
		return fmt.Errorf("max order amount must be zero or positive")
	}

	if provider.MaxOrderAmount > 0 && provider.MinOrderAmount > provider.MaxOrderAmount {
		return fmt.Errorf("min order amount exceeds max order amount")
	}

	return nil
}

func (v *Validator) validateRetry(retry *RetryConfig) error {
	if retry.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be zero or positive")
	}

	if retry.BackoffSeconds < 0 {
		return fmt.Errorf("backoff seconds must be zero or positive")
	}

	return nil
}
