// Package config provides functionality for managing configuration options
// for the application using command-line flags, a config file, a .env file
// and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Options holds the configuration values for the application.
type Options struct {
	// Address defines the server's listening address (ip:port).
	Address string
	// DatabaseDSN is the sqlite file path or the postgres connection string.
	DatabaseDSN string
	// DatabaseDriver selects the backend: sqlite or postgres.
	DatabaseDriver string
	// Config is the path to the JSON or YAML config file.
	Config string
	// JWTSecret signs access tokens. An empty secret is replaced at startup.
	JWTSecret string
	// TokenTTL is the lifetime of login tokens.
	TokenTTL time.Duration
	// AdminKey guards the /api/db routes. Empty disables them.
	AdminKey string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// CleanupInterval is the period of the orphan cleaner; 0 disables it.
	CleanupInterval time.Duration
	// TLSCert and TLSKey switch the server to HTTPS when both are set.
	TLSCert string
	TLSKey  string
}

// fileOptions is the on-disk shape of the config file.
type fileOptions struct {
	Address         string `json:"address" yaml:"address"`
	DatabaseDSN     string `json:"database_dsn" yaml:"database_dsn"`
	DatabaseDriver  string `json:"database_driver" yaml:"database_driver"`
	JWTSecret       string `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL        string `json:"token_ttl" yaml:"token_ttl"`
	AdminKey        string `json:"admin_key" yaml:"admin_key"`
	LogLevel        string `json:"log_level" yaml:"log_level"`
	CleanupInterval string `json:"cleanup_interval" yaml:"cleanup_interval"`
	TLSCert         string `json:"tls_cert" yaml:"tls_cert"`
	TLSKey          string `json:"tls_key" yaml:"tls_key"`
}

// defaults returns the built-in configuration.
func defaults() Options {
	return Options{
		Address:         "localhost:5000",
		DatabaseDriver:  "sqlite",
		Config:          "config.json",
		TokenTTL:        30 * 24 * time.Hour,
		LogLevel:        "info",
		CleanupInterval: time.Hour,
	}
}

// Parse reads the process arguments and environment. It exits on invalid input.
func Parse() *Options {
	opts, err := Load(os.Args[1:])
	if err != nil {
		log.Fatalf("error while loading configuration: %v", err)
	}
	return opts
}

// Load resolves the configuration. Later sources win: built-in defaults,
// the config file, environment variables (a .env file in the working
// directory fills variables that are not already set), then flags given
// explicitly in args.
func Load(args []string) (*Options, error) {
	opts := defaults()

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var fromFlags Options
	fs.StringVar(&fromFlags.Address, "a", opts.Address, "run on ip:port server")
	fs.StringVar(&fromFlags.DatabaseDSN, "d", "", "database DSN (sqlite path or postgres URL)")
	fs.StringVar(&fromFlags.DatabaseDriver, "driver", opts.DatabaseDriver, "database driver: sqlite or postgres")
	fs.StringVar(&fromFlags.Config, "config", opts.Config, "path to config file")
	fs.StringVar(&fromFlags.Config, "c", opts.Config, "path to config file (shorthand)")
	fs.StringVar(&fromFlags.JWTSecret, "jwt-secret", "", "secret used to sign access tokens")
	fs.DurationVar(&fromFlags.TokenTTL, "token-ttl", opts.TokenTTL, "lifetime of login tokens")
	fs.StringVar(&fromFlags.AdminKey, "admin-key", "", "key required by the /api/db routes")
	fs.StringVar(&fromFlags.LogLevel, "log-level", opts.LogLevel, "log level")
	fs.DurationVar(&fromFlags.CleanupInterval, "cleanup-interval", opts.CleanupInterval, "orphan cleanup period, 0 disables")
	fs.StringVar(&fromFlags.TLSCert, "tls-cert", "", "TLS certificate file")
	fs.StringVar(&fromFlags.TLSKey, "tls-key", "", "TLS private key file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if set["c"] || set["config"] {
		opts.Config = fromFlags.Config
	}
	if path := os.Getenv("CONFIG"); path != "" && !set["c"] && !set["config"] {
		opts.Config = path
	}
	if err := opts.applyFile(opts.Config, set["c"] || set["config"]); err != nil {
		return nil, err
	}
	if err := opts.applyEnv(); err != nil {
		return nil, err
	}

	for name, apply := range map[string]func(){
		"a":                func() { opts.Address = fromFlags.Address },
		"d":                func() { opts.DatabaseDSN = fromFlags.DatabaseDSN },
		"driver":           func() { opts.DatabaseDriver = fromFlags.DatabaseDriver },
		"jwt-secret":       func() { opts.JWTSecret = fromFlags.JWTSecret },
		"token-ttl":        func() { opts.TokenTTL = fromFlags.TokenTTL },
		"admin-key":        func() { opts.AdminKey = fromFlags.AdminKey },
		"log-level":        func() { opts.LogLevel = fromFlags.LogLevel },
		"cleanup-interval": func() { opts.CleanupInterval = fromFlags.CleanupInterval },
		"tls-cert":         func() { opts.TLSCert = fromFlags.TLSCert },
		"tls-key":          func() { opts.TLSKey = fromFlags.TLSKey },
	} {
		if set[name] {
			apply()
		}
	}

	if (opts.TLSCert == "") != (opts.TLSKey == "") {
		return nil, errors.New("tls-cert and tls-key must be set together")
	}
	return &opts, nil
}

// applyFile merges the config file at path. A missing file is an error
// only when the path was given explicitly.
func (o *Options) applyFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("error while reading config file: %w", err)
	}

	var f fileOptions
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}

	setString(&o.Address, f.Address)
	setString(&o.DatabaseDSN, f.DatabaseDSN)
	setString(&o.DatabaseDriver, f.DatabaseDriver)
	setString(&o.JWTSecret, f.JWTSecret)
	setString(&o.AdminKey, f.AdminKey)
	setString(&o.LogLevel, f.LogLevel)
	setString(&o.TLSCert, f.TLSCert)
	setString(&o.TLSKey, f.TLSKey)
	if err := setDuration(&o.TokenTTL, "token_ttl", f.TokenTTL); err != nil {
		return err
	}
	return setDuration(&o.CleanupInterval, "cleanup_interval", f.CleanupInterval)
}

func (o *Options) applyEnv() error {
	setString(&o.Address, os.Getenv("SERVER_ADDRESS"))
	setString(&o.DatabaseDSN, os.Getenv("DATABASE_DSN"))
	setString(&o.DatabaseDriver, os.Getenv("DATABASE_DRIVER"))
	setString(&o.JWTSecret, os.Getenv("JWT_SECRET"))
	setString(&o.AdminKey, os.Getenv("ADMIN_KEY"))
	setString(&o.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&o.TLSCert, os.Getenv("TLS_CERT"))
	setString(&o.TLSKey, os.Getenv("TLS_KEY"))
	if err := setDuration(&o.TokenTTL, "TOKEN_TTL", os.Getenv("TOKEN_TTL")); err != nil {
		return err
	}
	return setDuration(&o.CleanupInterval, "CLEANUP_INTERVAL", os.Getenv("CLEANUP_INTERVAL"))
}

// loadDotEnv loads path when it exists. Variables already present in the
// environment are kept.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	*dst = d
	return nil
}
