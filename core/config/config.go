// Package config loads engine configuration from environment variables,
// optionally seeded from an env file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Engine is the call-event engine configuration.
type Engine struct {
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	DTMFValidationEnabled bool          `env:"DTMF_VALIDATION_ENABLED" envDefault:"false"`
	DTMFChallengeEnabled  bool          `env:"DTMF_CHALLENGE_ENABLED" envDefault:"false"`
	DTMFChallengeLength   int           `env:"DTMF_CHALLENGE_LENGTH" envDefault:"3"`
	DTMFPINLength         int           `env:"DTMF_PIN_LENGTH" envDefault:"4"`
	DTMFWaitTimeout       time.Duration `env:"DTMF_WAIT_TIMEOUT" envDefault:"30s"`
}

// Validate rejects values the engine cannot run with.
func (c *Engine) Validate() error {
	if c.DTMFChallengeLength < 1 {
		return fmt.Errorf("DTMF_CHALLENGE_LENGTH must be positive, got %d", c.DTMFChallengeLength)
	}
	if c.DTMFPINLength < 1 {
		return fmt.Errorf("DTMF_PIN_LENGTH must be positive, got %d", c.DTMFPINLength)
	}
	if c.DTMFWaitTimeout <= 0 {
		return fmt.Errorf("DTMF_WAIT_TIMEOUT must be positive, got %s", c.DTMFWaitTimeout)
	}
	return nil
}

// New parses environment variables into any config struct type.
func New[T any]() (*T, error) {
	cfg := new(T)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads the file named by ENV_FILE (or .env when unset) into the
// environment. A missing default .env is not an error.
func LoadEnv() error {
	envfile := os.Getenv("ENV_FILE")
	if envfile == "" {
		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			return nil
		}
		return godotenv.Load()
	}
	return godotenv.Load(envfile)
}
