// Package config loads every environment-provided setting into a single
// immutable struct at process start. Nothing outside this package reads the
// environment.
package config

import (
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

const envLocal = "local"

// Config holds the full runtime configuration. Load it once in main and
// inject it into every component; it is never re-read per request.
type Config struct {
	Port    string `env:"PORT" envDefault:"3000"`
	Env     string `env:"ENV" envDefault:"local"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3000"`

	TDAAPIKey      string `env:"TDA_API_KEY"`
	TDACallbackURL string `env:"TDA_API_CALLBACK_URL"`
	TDAAuthURL     string `env:"TDA_AUTH_URL" envDefault:"https://auth.tdameritrade.com/auth"`
	TDAAPIBaseURL  string `env:"TDA_API_BASE_URL" envDefault:"https://api.tdameritrade.com/v1"`

	JWTAccessTokenSecret  string `env:"JWT_ACCESS_TOKEN_SECRET"`
	JWTRefreshTokenSecret string `env:"JWT_REFRESH_TOKEN_SECRET"`

	TurnstileSecretKey string `env:"CLOUDFLARE_TURNSTILE_SECRET_KEY"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/tradetracker.db"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config and validates the settings that
// have no sensible default.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "[config.Load] env.Parse")
	}
	if cfg.JWTAccessTokenSecret == "" {
		return nil, errors.New("[config.Load] JWT_ACCESS_TOKEN_SECRET is required")
	}
	if cfg.JWTRefreshTokenSecret == "" {
		return nil, errors.New("[config.Load] JWT_REFRESH_TOKEN_SECRET is required")
	}
	return &cfg, nil
}

// IsLocal reports whether the process runs in the local deployment mode.
// Local mode relaxes cookie attributes and disables the bot-challenge
// verifier; everything else behaves as deployed.
func (c *Config) IsLocal() bool {
	return c.Env == envLocal
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}

// BaseURLHost returns the host of BaseURL, used for cookie domain pinning in
// deployed mode.
func (c *Config) BaseURLHost() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}
