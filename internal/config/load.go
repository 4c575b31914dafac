// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix is the prefix of environment variables read by Load.
// WHISKEY_AUTH_SECRET_KEY sets auth.secret_key.
const EnvPrefix = "WHISKEY_"

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"env":                      "env",
	"http-addr":                "http.addr",
	"http-read-timeout":        "http.read_timeout",
	"http-write-timeout":       "http.write_timeout",
	"http-shutdown-timeout":    "http.shutdown_timeout",
	"cors-origins":             "http.cors_origins",
	"metrics-addr":             "metrics.addr",
	"database-url":             "database.url",
	"database-connect-timeout": "database.connect_timeout",
	"auto-migrate":             "database.auto_migrate",
	"jwt-algorithm":            "auth.algorithm",
	"access-token-ttl":         "auth.access_token_ttl",
	"reset-token-ttl":          "auth.reset_token_ttl",
	"password-hasher":          "auth.hasher",
	"bcrypt-cost":              "auth.bcrypt_cost",
	"log-format":               "log.format",
	"log-level":                "log.level",
}

// legacyEnv maps unprefixed variables to keys, for deployments that set the
// conventional names.
var legacyEnv = map[string]string{
	"DATABASE_URL": "database.url",
	"SECRET_KEY":   "auth.secret_key",
}

// RegisterFlags adds every configuration flag, with its default, to fs. The
// secret key has no flag so it never shows up in process listings.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("env", EnvProd, "environment (dev or prod)")
	fs.String("http-addr", ":8000", "API listen address")
	fs.Duration("http-read-timeout", 15*time.Second, "API read timeout")
	fs.Duration("http-write-timeout", 15*time.Second, "API write timeout")
	fs.Duration("http-shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	fs.StringSlice("cors-origins", []string{"*"}, "allowed CORS origins (glob patterns)")
	fs.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.Duration("database-connect-timeout", 30*time.Second, "how long to wait for the database at startup")
	fs.Bool("auto-migrate", false, "apply pending migrations on startup")
	fs.String("jwt-algorithm", "HS256", "JWT signing algorithm (HS256, HS384, HS512)")
	fs.Duration("access-token-ttl", 30*time.Minute, "access token lifetime")
	fs.Duration("reset-token-ttl", 24*time.Hour, "password reset token lifetime")
	fs.String("password-hasher", "bcrypt", "password hashing algorithm (bcrypt or argon2id)")
	fs.Int("bcrypt-cost", bcrypt.DefaultCost, "bcrypt cost factor")
	fs.String("log-format", "json", "log format (json or text)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

// Load builds a Config. Precedence, lowest first: flag defaults, the YAML
// file at path (if non-empty), environment variables, flags set on the
// command line. The result is not validated.
func Load(fs *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrapf(err, "read config file")
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", legacyEnvValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "read environment")
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", prefixedEnvValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "read environment")
	}

	// Unchanged flags only fill keys that are still unset.
	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagValue(fs)), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "read flags")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "decode configuration")
	}
	return &cfg, nil
}

func flagValue(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

func legacyEnvValue(name, value string) (string, any) {
	key, ok := legacyEnv[name]
	if !ok || value == "" {
		return "", nil
	}
	return key, value
}

// prefixedEnvValue turns WHISKEY_HTTP_READ_TIMEOUT into http.read_timeout:
// the first underscore after the prefix separates section from field.
func prefixedEnvValue(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	key = strings.Replace(key, "_", ".", 1)
	if key == "http.cors_origins" {
		return key, splitList(value)
	}
	return key, value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
