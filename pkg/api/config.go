package api

import (
	"os"
	"time"

	"github.com/obsync/obsync/internal/logger"
)

// EnvJWTSecret is the environment variable holding the HMAC signing secret
// for bearer tokens. It takes precedence over the config file.
const EnvJWTSecret = "OBSYNC_JWT_SECRET"

// APIConfig configures the HTTP server that carries the sync surface.
type APIConfig struct {
	// Port is the HTTP port for the API endpoints.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Default: 10s. Websocket connections are exempt because the
	// upgrade hijacks the connection.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit. Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RequestTimeout bounds non-websocket request handling. Default: 30s
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// ShutdownTimeout is the maximum time to wait for in-flight requests to
	// drain on graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// JWT configures bearer token validation.
	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt"`

	// EnableMetrics exposes a Prometheus scrape endpoint at /metrics.
	EnableMetrics bool `mapstructure:"enable_metrics" yaml:"enable_metrics"`
}

// JWTConfig configures bearer token generation and validation.
type JWTConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	// Can also be set via OBSYNC_JWT_SECRET; the env var wins.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// TokenDuration is the lifetime of minted tokens. Default: 24h
	TokenDuration time.Duration `mapstructure:"token_duration" yaml:"token_duration"`
}

// ApplyDefaults fills in zero values with the defaults.
func (c *APIConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.JWT.TokenDuration == 0 {
		c.JWT.TokenDuration = 24 * time.Hour
	}
}

// GetJWTSecret returns the signing secret, preferring the environment
// variable over the config file value.
func (c *APIConfig) GetJWTSecret() string {
	envSecret := os.Getenv(EnvJWTSecret)
	if envSecret != "" {
		if c.JWT.Secret != "" && c.JWT.Secret != envSecret {
			logger.Warn("JWT secret from environment variable overrides config file value",
				"env_var", EnvJWTSecret)
		}
		return envSecret
	}
	return c.JWT.Secret
}
