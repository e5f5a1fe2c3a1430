package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all environment backed configuration for the edge gateway.
type Config struct {
	// HTTP Server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Identity provider / Auth
	JWKSURL             string        `env:"JWKS_URL,notEmpty"`
	Issuer              string        `env:"ISSUER,notEmpty"`
	Audience            string        `env:"AUDIENCE"`
	RefreshJWKSInterval time.Duration `env:"JWKS_REFRESH_INTERVAL" envDefault:"5m"`
	ClockSkew           time.Duration `env:"AUTH_CLOCK_SKEW" envDefault:"30s"`

	// Session cookies
	SessionCookie string   `env:"SESSION_COOKIE" envDefault:"session-token"`
	AccessCookie  string   `env:"ACCESS_COOKIE" envDefault:"access-token"`
	PurgeCookies  []string `env:"PURGE_COOKIES" envSeparator:"," envDefault:"session-token,id-token,refresh-token,session,access-token,user-id"`

	// Session cache
	SessionCacheBackend   string        `env:"SESSION_CACHE_BACKEND" envDefault:"memory"`
	SessionCacheMaxSize   int           `env:"SESSION_CACHE_MAX_SIZE" envDefault:"1000"`
	SessionCacheTTL       time.Duration `env:"SESSION_CACHE_TTL" envDefault:"15m"`
	SessionVerifyInterval time.Duration `env:"SESSION_VERIFY_INTERVAL" envDefault:"30m"`
	SessionCacheRetention time.Duration `env:"SESSION_CACHE_RETENTION" envDefault:"24h"`
	SessionCacheRedisURL  string        `env:"SESSION_CACHE_REDIS_URL"`

	// User API (backend profile checks)
	UserAPIBaseURL string        `env:"USER_API_BASE_URL,notEmpty"`
	UserAPITimeout time.Duration `env:"USER_API_TIMEOUT" envDefault:"10s"`

	// Mobile redirect
	MobileStoreURL string `env:"MOBILE_STORE_URL"`

	// Chat service
	ChatSocketURL      string        `env:"CHAT_SOCKET_URL,notEmpty"`
	ChatAPIBaseURL     string        `env:"CHAT_API_BASE_URL,notEmpty"`
	ChatCredentialFile string        `env:"CHAT_CREDENTIAL_FILE"`
	ChatAckTimeout     time.Duration `env:"CHAT_ACK_TIMEOUT" envDefault:"10s"`
	ChatSearchTimeout  time.Duration `env:"CHAT_SEARCH_TIMEOUT" envDefault:"10s"`
	ChatUserID         string        `env:"CHAT_USER_ID"`

	// Observability / Logging
	OTLPEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName      string `env:"SERVICE_NAME" envDefault:"edge-gateway"`
	ServiceNamespace string `env:"SERVICE_NAMESPACE" envDefault:"smartsite"`
	Environment      string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if _, err := url.ParseRequestURI(cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("invalid JWKS_URL: %w", err)
	}
	if _, err := url.ParseRequestURI(cfg.UserAPIBaseURL); err != nil {
		return nil, fmt.Errorf("invalid USER_API_BASE_URL: %w", err)
	}
	if _, err := url.ParseRequestURI(cfg.ChatAPIBaseURL); err != nil {
		return nil, fmt.Errorf("invalid CHAT_API_BASE_URL: %w", err)
	}

	switch backend := strings.ToLower(cfg.SessionCacheBackend); backend {
	case "memory":
	case "redis":
		if cfg.SessionCacheRedisURL == "" {
			return nil, fmt.Errorf("SESSION_CACHE_REDIS_URL required for redis cache backend")
		}
	default:
		return nil, fmt.Errorf("unsupported session cache backend %q", backend)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsProduction reports whether the gateway runs in a production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
