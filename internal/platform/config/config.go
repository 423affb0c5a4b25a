package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds process configuration read from the environment.
type Config struct {
	Port     string `env:"PORT"      envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Firebase Firebase
	Profile  Profile
	Account  Account
	Tracing  Tracing
}

// Firebase holds identity provider and document store settings.
type Firebase struct {
	ProjectID                    string `env:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	// APIKey is the Web API key used for password reauthentication.
	APIKey           string `env:"FIREBASE_API_KEY"`
	AuthEmulatorHost string `env:"FIREBASE_AUTH_EMULATOR_HOST"`
}

// Profile holds profile document settings.
type Profile struct {
	Collection      string        `env:"PROFILE_COLLECTION"       envDefault:"users"`
	DefaultTheme    string        `env:"PROFILE_DEFAULT_THEME"`
	DefaultLanguage string        `env:"PROFILE_DEFAULT_LANGUAGE"`
	CachePath       string        `env:"PROFILE_CACHE_PATH"`
	CacheTTL        time.Duration `env:"PROFILE_CACHE_TTL"        envDefault:"5m"`
}

// Account holds account deletion settings.
type Account struct {
	// UserDataCollections lists collections whose uid-keyed documents are
	// removed together with the profile document.
	UserDataCollections []string `env:"USER_DATA_COLLECTIONS" envSeparator:","`
	DeleteRatePerMinute float64  `env:"DELETE_RATE_PER_MINUTE" envDefault:"5"`
	DeleteRateBurst     int      `env:"DELETE_RATE_BURST"      envDefault:"5"`
}

// Tracing holds OpenTelemetry exporter settings. Tracing is off unless an
// endpoint is configured.
type Tracing struct {
	Enabled     bool   `env:"OTEL_ENABLED"      envDefault:"true"`
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"account-lifecycle"`
}

// Load reads an optional .env file from the working directory and then parses
// the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse parses the current environment into a Config.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Account.DeleteRatePerMinute <= 0 {
		return nil, errors.New("DELETE_RATE_PER_MINUTE must be positive")
	}
	if cfg.Account.DeleteRateBurst < 1 {
		return nil, errors.New("DELETE_RATE_BURST must be at least 1")
	}
	return &cfg, nil
}
