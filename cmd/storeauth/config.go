package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	auth "github.com/goliatone/go-storeauth"
)

const (
	envConfig        = "STOREAUTH_CONFIG"
	envAccessSecret  = "STOREAUTH_ACCESS_SECRET"
	envRefreshSecret = "STOREAUTH_REFRESH_SECRET"

	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

// Config is the server configuration file.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Auth        auth.Options      `yaml:"auth"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	LogLevel    string            `yaml:"log_level"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metrics_address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// ProxyHeader and TrustedProxies are only honoured together.
	ProxyHeader    string   `yaml:"proxy_header"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type PersistenceConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// LedgerConfig tunes the retired token cache and the reaper.
type LedgerConfig struct {
	CacheSize    int           `yaml:"cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8572",
			MetricsAddress:  ":9572",
			ShutdownTimeout: 10 * time.Second,
		},
		Persistence: PersistenceConfig{
			Driver: driverSQLite,
			DSN:    "file:storeauth.db?cache=shared",
		},
		Auth: auth.DefaultOptions(),
		RateLimit: RateLimitConfig{
			PerSecond: 1,
			Burst:     5,
		},
		Ledger: LedgerConfig{
			CacheSize:    10_000,
			CacheTTL:     time.Hour,
			ReapInterval: auth.DefaultReapInterval,
		},
		LogLevel: "info",
	}
}

// Validate will run validation rules
func (c *Config) Validate() *errors.Error {
	if err := errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(c,
			validation.Field(&c.LogLevel, validation.In("trace", "debug", "info", "warn", "error")),
		)
	}, "invalid configuration"); err != nil {
		return err
	}

	if err := errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c.Server,
			validation.Field(&c.Server.Address, validation.Required),
			validation.Field(&c.Server.ShutdownTimeout, validation.Min(time.Second)),
		)
	}, "invalid server configuration"); err != nil {
		return err
	}

	if err := errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c.Persistence,
			validation.Field(&c.Persistence.Driver, validation.Required, validation.In(driverSQLite, driverPostgres)),
			validation.Field(&c.Persistence.DSN, validation.Required),
		)
	}, "invalid persistence configuration"); err != nil {
		return err
	}

	return c.Auth.Validate()
}

// loadConfig resolves defaults, then the YAML file, then env secrets, then flags.
func loadConfig(args []string, getenv func(string) string) (*Config, error) {
	cfg := defaultConfig()

	fs := pflag.NewFlagSet("storeauth", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", getenv(envConfig), "path to the YAML configuration file")
	address := fs.String("address", "", "HTTP listen address")
	metrics := fs.String("metrics-address", "", "metrics listen address, empty to disable")
	driver := fs.String("db-driver", "", "database driver: sqlite or postgres")
	dsn := fs.String("db-dsn", "", "database DSN")
	level := fs.String("log-level", "", "log level")
	proxies := fs.StringSlice("trusted-proxy", nil, "proxy address or CIDR whose forwarded header is honoured, repeatable")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", *configPath, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", *configPath, err)
		}
	}

	if v := getenv(envAccessSecret); v != "" {
		cfg.Auth.AccessSecret = v
	}
	if v := getenv(envRefreshSecret); v != "" {
		cfg.Auth.RefreshSecret = v
	}

	if fs.Changed("address") {
		cfg.Server.Address = *address
	}
	if fs.Changed("metrics-address") {
		cfg.Server.MetricsAddress = *metrics
	}
	if fs.Changed("db-driver") {
		cfg.Persistence.Driver = *driver
	}
	if fs.Changed("db-dsn") {
		cfg.Persistence.DSN = *dsn
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *level
	}
	if fs.Changed("trusted-proxy") {
		cfg.Server.TrustedProxies = *proxies
	}

	cfg.Persistence.Driver = strings.ToLower(strings.TrimSpace(cfg.Persistence.Driver))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Auth = cfg.Auth.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
