// Package config provides configuration loading using koanf.
// Precedence: environment variables, then compiled defaults.
package config

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/challengehub/web/internal/domain"
)

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds all service configuration.
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	Web     WebConfig     `koanf:"web"`
	API     APIConfig     `koanf:"api"`
	Auth    AuthConfig    `koanf:"auth"`
	Session SessionConfig `koanf:"session"`
	Redis   RedisConfig   `koanf:"redis"`
	Google  GoogleConfig  `koanf:"google"`

	OTEL OTELConfig `koanf:"otel"`
}

// WebConfig holds the front-end HTTP listener configuration.
type WebConfig struct {
	HTTPPort int `koanf:"http_port"`

	// TrustedProxies is a comma-separated list of proxy IPs or CIDRs whose
	// X-Forwarded-For header is believed. Empty trusts no one.
	TrustedProxies string `koanf:"trusted_proxies"`
}

// APIConfig points at the platform REST API. The client appends /api/v1.
type APIConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// AuthConfig controls the session cookie and the refresh policy.
type AuthConfig struct {
	Secret              domain.SecretString `koanf:"secret"` // Required outside local
	SessionMaxAge       time.Duration       `koanf:"session_max_age"`
	CookieSecure        bool                `koanf:"cookie_secure"`
	SingleFlightRefresh bool                `koanf:"single_flight_refresh"`

	// Sign-in attempts allowed per client IP per window. Zero disables the throttle.
	SignInLimit  int           `koanf:"signin_limit"`
	SignInWindow time.Duration `koanf:"signin_window"`
}

// SessionConfig selects where session records live.
type SessionConfig struct {
	Store string `koanf:"store"` // "memory" or "redis"
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`
}

// GoogleConfig enables federated sign-in. An empty ClientID disables it.
type GoogleConfig struct {
	ClientID     string              `koanf:"client_id"`
	ClientSecret domain.SecretString `koanf:"client_secret"`
	RedirectURL  string              `koanf:"redirect_url"`
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"service_name"`
}

// devSecret signs session cookies in local development only.
const devSecret = "local-dev-session-secret-change-me"

func defaults() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",
		LogFormat:   "json",

		Web: WebConfig{
			HTTPPort: 3000,
		},
		API: APIConfig{
			URL:     "http://localhost:8000",
			Timeout: domain.APITimeout,
		},
		Auth: AuthConfig{
			Secret:              devSecret,
			SessionMaxAge:       domain.SessionMaxAge,
			SingleFlightRefresh: true,
			SignInLimit:         domain.SignInAttemptLimit,
			SignInWindow:        domain.SignInAttemptWindow,
		},
		Session: SessionConfig{
			Store: SessionStoreMemory,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Timeout: domain.RedisTimeout,
		},
		Google: GoogleConfig{
			RedirectURL: "http://localhost:3000/auth/google/callback",
		},
		OTEL: OTELConfig{
			ServiceName: "challenge-web",
		},
	}
}

// EnvKey maps an environment variable name to a config key. A double
// underscore separates nesting levels and single underscores are kept, so
// API__URL sets api.url and AUTH__SINGLE_FLIGHT_REFRESH sets
// auth.single_flight_refresh.
func EnvKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Load loads configuration from environment variables over compiled defaults.
// Missing required keys fail startup.
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")
	cfg := defaults()

	if err := k.Load(env.Provider("", ".", EnvKey), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateRequired(cfg *Config) error {
	switch cfg.Session.Store {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return fmt.Errorf("%w: session.store must be %q or %q, got %q",
			domain.ErrConfigRequired, SessionStoreMemory, SessionStoreRedis, cfg.Session.Store)
	}

	if cfg.API.URL == "" {
		return fmt.Errorf("%w: api.url", domain.ErrConfigRequired)
	}

	if _, err := ParseTrustedProxies(cfg.Web.TrustedProxies); err != nil {
		return fmt.Errorf("%w: web.trusted_proxies: %w", domain.ErrConfigRequired, err)
	}

	if cfg.Session.Store == SessionStoreRedis && cfg.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr", domain.ErrConfigRequired)
	}

	if cfg.IsLocal() {
		return nil
	}

	if cfg.Auth.Secret.IsEmpty() || cfg.Auth.Secret.Expose() == devSecret {
		return fmt.Errorf("%w: auth.secret", domain.ErrConfigRequired)
	}
	if cfg.Google.ClientID != "" && cfg.Google.ClientSecret.IsEmpty() {
		return fmt.Errorf("%w: google.client_secret", domain.ErrConfigRequired)
	}

	return nil
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}

// IsProd returns true if running in production environment.
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}

// GoogleEnabled reports whether federated sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != ""
}

// ParseTrustedProxies parses a comma-separated list of IPs and CIDRs. A bare
// IP becomes a single-address prefix.
func ParseTrustedProxies(list string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("parse %q: %w", item, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", item, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
