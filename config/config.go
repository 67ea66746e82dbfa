// Package config loads deployment configuration from the environment.
package config

import (
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Settlement modes.
const (
	ModeRelay  = "relay"
	ModeDirect = "direct"
)

// Config is the full deployment configuration. All values come from the
// environment (optionally seeded from a .env file); mode-specific secrets
// are validated at load so a misconfigured process refuses to start.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR,default=:8080"`
	LogLevel   string `env:"LOG_LEVEL,default=info"`

	// Mode selects the settlement strategy: relay (gasless via sponsor
	// wallets) or direct (locally held signing key).
	Mode string `env:"SETTLEMENT_MODE,default=relay"`

	// Networks is the semicolon-separated list of networks this facilitator
	// accepts. Empty means every network in the registry.
	Networks []string `env:"NETWORKS"`

	// ChainsFile optionally overrides or extends the built-in chain
	// registry.
	ChainsFile string `env:"CHAINS_FILE"`

	RelayBaseURL string `env:"RELAY_BASE_URL,default=https://engine.thirdweb.com"`
	RelayAPIKey  string `env:"RELAY_API_KEY"`

	// PrivateKey is the facilitator signing key for direct mode.
	PrivateKey string `env:"FACILITATOR_PRIVATE_KEY"`

	MongoURI      string `env:"MONGO_URI,default=mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DB,default=sponsorpay"`

	// SettlementCacheTTLSeconds is how long finished settlement results are
	// served to duplicate requests.
	SettlementCacheTTLSeconds int `env:"SETTLEMENT_CACHE_TTL_SECONDS,default=600"`
}

// Load reads .env if present, decodes the environment and validates
// mode-specific requirements.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeRelay:
		if c.RelayAPIKey == "" {
			return errors.New("RELAY_API_KEY is required in relay mode")
		}
	case ModeDirect:
		if c.PrivateKey == "" {
			return errors.New("FACILITATOR_PRIVATE_KEY is required in direct mode")
		}
	default:
		return fmt.Errorf("unknown settlement mode: %s", c.Mode)
	}
	return nil
}
