package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// AppBaseURL is where callback handlers redirect the browser after the
	// OAuth dance, success or failure.
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`

	StateSigningSecret string `env:"STATE_SIGNING_SECRET,required"`
	EncryptionKey      string `env:"ENCRYPTION_KEY"`

	GarminConsumerKey    string `env:"GARMIN_CONSUMER_KEY"`
	GarminConsumerSecret string `env:"GARMIN_CONSUMER_SECRET"`
	GarminCallbackURL    string `env:"GARMIN_CALLBACK_URL"`

	FitbitClientID     string `env:"FITBIT_CLIENT_ID"`
	FitbitClientSecret string `env:"FITBIT_CLIENT_SECRET"`
	FitbitCallbackURL  string `env:"FITBIT_CALLBACK_URL"`

	// CronSecret guards POST /v1/sync/run. Empty disables the endpoint.
	CronSecret string `env:"CRON_SECRET"`

	// SyncIntervalMinutes drives the internal scheduler; 0 means sync runs
	// only when the cron endpoint is hit.
	SyncIntervalMinutes int `env:"SYNC_INTERVAL_MINUTES" envDefault:"0"`

	// ReconnectBonus re-awards the connection bonus when a user re-authorizes
	// an already-connected provider.
	ReconnectBonus bool `env:"WEARABLE_RECONNECT_BONUS" envDefault:"false"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

func (c *Config) Validate(isProduction bool) error {
	if err := validateSecret("STATE_SIGNING_SECRET", c.StateSigningSecret, isProduction); err != nil {
		return err
	}

	if c.EncryptionKey == "" {
		// Documented degraded mode: tokens are stored as-is. Loud, not silent.
		log.Warn().Msg("ENCRYPTION_KEY is empty: provider tokens will be stored UNENCRYPTED")
	} else {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil {
			return fmt.Errorf("ENCRYPTION_KEY must be hex (generate with: openssl rand -hex 32)")
		}
		if len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key))
		}
	}

	if c.GarminConsumerKey == "" || c.GarminConsumerSecret == "" {
		log.Warn().Msg("Garmin credentials not configured: Garmin connect flow disabled")
	}
	if c.FitbitClientID == "" || c.FitbitClientSecret == "" {
		log.Warn().Msg("Fitbit credentials not configured: Fitbit connect flow disabled")
	}

	if isProduction && c.CronSecret == "" {
		log.Warn().Msg("CRON_SECRET is empty in production: /v1/sync/run is disabled")
	}

	return nil
}

func validateSecret(name, value string, isProduction bool) error {
	if !isProduction {
		return nil
	}
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
