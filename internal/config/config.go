package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
	"github.com/haggle-hub/haggle-hub/internal/domain/policy"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds service configuration.
type Config struct {
	StoreDriver     string
	DatabaseURL     string
	DBMaxConns      int32
	SQLitePath      string
	MigrationsDir   string
	ServerAddr      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisPrefix     string
	JWTSecret       string
	RateLimitRPS    float64
	RateLimitBurst  int
	LogLevel        string
	Negotiation     NegotiationPolicy
}

// NegotiationPolicy holds the offer TTL bounds and the amount admission rule.
type NegotiationPolicy struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
	MinTTL     time.Duration `yaml:"min_ttl"`
	MaxTTL     time.Duration `yaml:"max_ttl"`
	AmountRule string        `yaml:"amount_rule"`
}

// ExpiryPolicy converts the TTL bounds.
func (p NegotiationPolicy) ExpiryPolicy() offer.ExpiryPolicy {
	return offer.ExpiryPolicy{Default: p.DefaultTTL, Min: p.MinTTL, Max: p.MaxTTL}
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "haggle")
		pass := getenv("POSTGRES_PASSWORD", "haggle_pass")
		db := getenv("POSTGRES_DB", "haggle")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	defaults := offer.DefaultExpiryPolicy()
	cfg := &Config{
		StoreDriver:     strings.ToLower(getenv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:     dsn,
		DBMaxConns:      int32(parseInt(getenv("DB_MAX_CONNS", ""), 10)),
		SQLitePath:      getenv("SQLITE_PATH", "haggle.db"),
		MigrationsDir:   getenv("MIGRATIONS_DIR", "internal/migrations"),
		ServerAddr:      getenv("SERVER_ADDR", "0.0.0.0:8080"),
		RequestTimeout:  parseDuration(getenv("REQUEST_TIMEOUT", "15s"), 15*time.Second),
		ShutdownTimeout: parseDuration(getenv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         parseInt(getenv("REDIS_DB", ""), 0),
		RedisPrefix:     getenv("REDIS_CHANNEL_PREFIX", "haggle:"),
		JWTSecret:       os.Getenv("AUTH_JWT_SECRET"),
		RateLimitRPS:    parseFloat(getenv("RATE_LIMIT_RPS", ""), 10),
		RateLimitBurst:  parseInt(getenv("RATE_LIMIT_BURST", ""), 20),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		Negotiation: NegotiationPolicy{
			DefaultTTL: defaults.Default,
			MinTTL:     defaults.Min,
			MaxTTL:     defaults.Max,
			AmountRule: policy.DefaultAmountRule,
		},
	}

	if path := os.Getenv("NEGOTIATION_POLICY_FILE"); path != "" {
		if err := cfg.Negotiation.overlay(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay replaces the fields set in the YAML file at path.
func (p *NegotiationPolicy) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load negotiation policy: %w", err)
	}
	var file NegotiationPolicy
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse negotiation policy %q: %w", path, err)
	}
	if file.DefaultTTL != 0 {
		p.DefaultTTL = file.DefaultTTL
	}
	if file.MinTTL != 0 {
		p.MinTTL = file.MinTTL
	}
	if file.MaxTTL != 0 {
		p.MaxTTL = file.MaxTTL
	}
	if strings.TrimSpace(file.AmountRule) != "" {
		p.AmountRule = file.AmountRule
	}
	return nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("rate limit must be positive")
	}
	if err := c.Negotiation.ExpiryPolicy().Validate(); err != nil {
		return err
	}
	if _, err := policy.NewAmountRule(c.Negotiation.AmountRule); err != nil {
		return err
	}
	return nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func parseFloat(val string, def float64) float64 {
	if val == "" {
		return def
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return f
}
