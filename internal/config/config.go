// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

// Package config loads WhiskeyTracker configuration from flags, a YAML file
// and the environment.
package config

import (
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// Environments.
const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// MinSecretKeyLength matches the token issuer's minimum HMAC key length.
const MinSecretKeyLength = 16

// Config is the full process configuration.
type Config struct {
	Env      string         `koanf:"env"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

// AuthConfig configures hashing and token issuance.
type AuthConfig struct {
	SecretKey      string        `koanf:"secret_key"`
	Algorithm      string        `koanf:"algorithm"`
	AccessTokenTTL time.Duration `koanf:"access_token_ttl"`
	ResetTokenTTL  time.Duration `koanf:"reset_token_ttl"`
	Hasher         string        `koanf:"hasher"`
	BcryptCost     int           `koanf:"bcrypt_cost"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// IsDev reports whether the process runs in the dev environment.
func (c *Config) IsDev() bool {
	return c.Env == EnvDev
}

// Validate checks every field and returns the first problem found, coded
// CONFIG_INVALID.
func (c *Config) Validate() error {
	if c.Env != EnvDev && c.Env != EnvProd {
		return invalid("env", "must be %q or %q, got %q", EnvDev, EnvProd, c.Env)
	}
	if err := c.validateHTTP(); err != nil {
		return err
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.Database.ConnectTimeout <= 0 {
		return invalid("database.connect_timeout", "must be positive")
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return invalid("log.format", "must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateHTTP() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "is required")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return invalid("http.read_timeout", "must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return invalid("http.write_timeout", "must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return invalid("http.shutdown_timeout", "must be positive")
	}
	for _, origin := range c.HTTP.CORSOrigins {
		if _, err := glob.Compile(origin); err != nil {
			return oops.Code("CONFIG_INVALID").
				With("key", "http.cors_origins").
				With("pattern", origin).
				Wrapf(err, "invalid origin pattern")
		}
	}
	return nil
}

// ValidateDatabase checks only the database URL. Commands that touch the
// database but not the API call it instead of Validate.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "is required")
	}
	u, err := url.Parse(c.Database.URL)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return invalid("database.url", "must be a postgres:// URL")
	}
	return nil
}

func (c *Config) validateAuth() error {
	switch {
	case c.Auth.SecretKey == "" && !c.IsDev():
		return invalid("auth.secret_key", "is required outside the dev environment")
	case c.Auth.SecretKey != "" && len(c.Auth.SecretKey) < MinSecretKeyLength:
		return invalid("auth.secret_key", "must be at least %d bytes", MinSecretKeyLength)
	}
	if !slices.Contains([]string{"HS256", "HS384", "HS512"}, c.Auth.Algorithm) {
		return invalid("auth.algorithm", "must be HS256, HS384 or HS512, got %q", c.Auth.Algorithm)
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return invalid("auth.access_token_ttl", "must be positive")
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return invalid("auth.reset_token_ttl", "must be positive")
	}
	if c.Auth.Hasher != "bcrypt" && c.Auth.Hasher != "argon2id" {
		return invalid("auth.hasher", "must be 'bcrypt' or 'argon2id', got %q", c.Auth.Hasher)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return invalid("auth.bcrypt_cost", "must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

// ParseLevel converts a log.level value to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, invalid("log.level", "must be debug, info, warn or error, got %q", level)
	}
}

// LogValue renders the configuration without secrets.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("env", c.Env),
		slog.String("http_addr", c.HTTP.Addr),
		slog.Any("cors_origins", c.HTTP.CORSOrigins),
		slog.String("metrics_addr", c.Metrics.Addr),
		slog.String("database_url", redactURL(c.Database.URL)),
		slog.Bool("auto_migrate", c.Database.AutoMigrate),
		slog.String("algorithm", c.Auth.Algorithm),
		slog.Duration("access_token_ttl", c.Auth.AccessTokenTTL),
		slog.Duration("reset_token_ttl", c.Auth.ResetTokenTTL),
		slog.String("hasher", c.Auth.Hasher),
		slog.Bool("secret_key_set", c.Auth.SecretKey != ""),
		slog.String("log_level", c.Log.Level),
	)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable]"
	}
	return u.Redacted()
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(key+" "+format, args...)
}
