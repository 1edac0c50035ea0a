package config

import (
	"fmt"
	"strings"

	"github.com/xor-engine/corebot/internal/domain"
)

// ProviderConfig describes one configured exchange connection: which venue,
// what credentials to sign requests with, and whether it trades spot or
// linear-margin instruments.
type ProviderConfig struct {
	Name       string             `yaml:"name"`
	Exchange   domain.Exchange    `yaml:"exchange"`
	MarketType MarketType         `yaml:"market_type"`
	Testnet    bool               `yaml:"testnet"`
	Credential CredentialSettings `yaml:"credential"`
}

// CredentialSettings holds the API key pair used to sign venue requests.
// Values are read literally from the YAML file; Load does not expand
// environment variable references such as `${BINANCE_API_KEY}`.
type CredentialSettings struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

func (p ProviderConfig) validate() error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return fmt.Errorf("provider: name required")
	}
	switch p.Exchange {
	case domain.ExchangeBinance, domain.ExchangeBybit:
	default:
		return fmt.Errorf("provider %s: unsupported exchange %q", name, p.Exchange)
	}
	switch p.MarketType {
	case MarketSpot, MarketLinear:
	default:
		return fmt.Errorf("provider %s: unsupported market_type %q", name, p.MarketType)
	}
	if p.Credential.APIKey == "" || p.Credential.APISecret == "" {
		return fmt.Errorf("provider %s: api_key and api_secret required", name)
	}
	return nil
}
