// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Policy engines selectable with POLICY_ENGINE.
const (
	PolicyEngineStatic = "static"
	PolicyEngineOPA    = "opa"
)

// MinJWTSecretLength matches security.MinSecretLength.
const MinJWTSecretLength = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the HS256 signing secret, inline or "file://<path>".
	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTExpirationHours is the session token lifetime in hours.
	JWTExpirationHours int `mapstructure:"JWT_EXPIRATION_HOURS"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// RedisAddr switches the per-account enrollment lock to Redis when set.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// LockTTL bounds how long a Redis lock is held if its owner dies (e.g. "10s").
	LockTTL string `mapstructure:"LOCK_TTL"`

	// PolicyEngine is "static" (grant table) or "opa" (Rego).
	PolicyEngine string `mapstructure:"POLICY_ENGINE"`
	// PublicPaths overrides the default unauthenticated path prefixes (comma-separated).
	PublicPaths string `mapstructure:"PUBLIC_PATHS"`
	// CORSAllowedOrigins is a comma-separated origin list; "*" allows any.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Env is the application environment (e.g. "development", "production").
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// ReconcileInterval is how often cmd/reconcile repeats; "0" runs once.
	ReconcileInterval string `mapstructure:"RECONCILE_INTERVAL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "eduplatform")
	v.SetDefault("JWT_EXPIRATION_HOURS", 24)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("LOCK_TTL", "10s")
	v.SetDefault("POLICY_ENGINE", PolicyEngineStatic)
	v.SetDefault("PUBLIC_PATHS", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "eduplatform-backend")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RECONCILE_INTERVAL", "0")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints. JWT_SECRET is only length-checked
// when it is inline; file:// secrets are checked once loaded.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	if !strings.HasPrefix(c.JWTSecret, "file://") && len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	if c.JWTExpirationHours <= 0 {
		return errors.New("config: JWT_EXPIRATION_HOURS must be positive")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	c.PolicyEngine = strings.ToLower(strings.TrimSpace(c.PolicyEngine))
	if c.PolicyEngine == "" {
		c.PolicyEngine = PolicyEngineStatic
	}
	if c.PolicyEngine != PolicyEngineStatic && c.PolicyEngine != PolicyEngineOPA {
		return fmt.Errorf("config: POLICY_ENGINE must be %q or %q, got %q", PolicyEngineStatic, PolicyEngineOPA, c.PolicyEngine)
	}
	if _, err := parseDuration(c.LockTTL); err != nil {
		return fmt.Errorf("config: LOCK_TTL: %w", err)
	}
	if _, err := parseDuration(c.ReconcileInterval); err != nil {
		return fmt.Errorf("config: RECONCILE_INTERVAL: %w", err)
	}
	return nil
}

// TokenTTL returns the session token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpirationHours) * time.Hour
}

// LockTTLDuration parses LockTTL. Returns 10s if unset or invalid.
func (c *Config) LockTTLDuration() time.Duration {
	d, err := parseDuration(c.LockTTL)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// ReconcileEvery parses ReconcileInterval; zero means run once.
func (c *Config) ReconcileEvery() time.Duration {
	d, _ := parseDuration(c.ReconcileInterval)
	return d
}

// PublicPathList returns the PUBLIC_PATHS override, or nil to use the defaults.
func (c *Config) PublicPathList() []string {
	return splitList(c.PublicPaths)
}

// CORSOrigins returns the allowed CORS origins.
func (c *Config) CORSOrigins() []string {
	origins := splitList(c.CORSAllowedOrigins)
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("must not be negative")
	}
	return d, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
