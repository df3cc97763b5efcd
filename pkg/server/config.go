package server

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

const minHashCacheSizeKB = 512

type Config struct {
	// Port the HTTP server listens on.
	Port string `env:"QUARRY_PORT" envDefault:"4040"`

	// Namespace every signed envelope must carry.
	Namespace string `env:"QUARRY_NAMESPACE" envDefault:"quarry"`

	// Accept unsigned envelopes. Only meant for local development.
	DisableSignatureVerification bool `env:"QUARRY_DISABLE_SIGNATURE_VERIFICATION" envDefault:"false"`

	// How long a signed envelope stays valid after its timestamp.
	MessageExpiration time.Duration `env:"QUARRY_MESSAGE_EXPIRATION" envDefault:"10s"`

	// Size of the replay hash cache.
	HashCacheSizeKB int `env:"QUARRY_HASH_CACHE_SIZE_KB" envDefault:"1024"`

	// Allow cross-origin requests.
	EnableCORS bool `env:"QUARRY_ENABLE_CORS" envDefault:"true"`
}

// LoadConfig loads the server configuration from environment variables.
func LoadConfig() (Config, error) {
	cfg := Config{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse server config")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate server config")
	}

	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.Port == "" {
		return eris.New("port cannot be empty")
	}
	if cfg.Namespace == "" {
		return eris.New("namespace cannot be empty")
	}
	if cfg.MessageExpiration <= 0 {
		return eris.New("message expiration must be positive")
	}
	if cfg.HashCacheSizeKB < minHashCacheSizeKB {
		return eris.Errorf("hash cache must be at least %d KB", minHashCacheSizeKB)
	}
	return nil
}
